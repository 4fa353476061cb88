package visualization

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Open hands a rendered file or URL to the platform's default viewer.
// It supports Linux (xdg-open), macOS (open), and Windows (cmd start).
func Open(target string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", target)
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", target)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
