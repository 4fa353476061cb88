package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flynn33/ash-model/internal/codeword"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List built-in codeword sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type entry struct {
				Name      string   `json:"name"`
				Dim       int      `json:"dim"`
				Codewords []string `json:"codewords"`
				Default   bool     `json:"default"`
			}

			var entries []entry
			for _, name := range codeword.PresetNames() {
				set, err := codeword.Preset(name)
				if err != nil {
					return err
				}
				entries = append(entries, entry{
					Name:      name,
					Dim:       set.Dim(),
					Codewords: set.Strings(),
					Default:   name == codeword.DefaultPreset,
				})
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				return writeJSON(out, map[string]interface{}{"presets": entries})
			}
			for _, e := range entries {
				marker := ""
				if e.Default {
					marker = " (default)"
				}
				fmt.Fprintf(out, "%s%s: D=%d, %d codewords\n", e.Name, marker, e.Dim, len(e.Codewords))
				fmt.Fprintf(out, "  %s\n", strings.Join(e.Codewords, " "))
			}
			return nil
		},
	}
}
