// Package logging provides leveled logging and tick tracing for ash.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TickTrace for structured JSONL per-tick records (.ash/ticks.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug.
// At this level every tick is logged to stderr as well as to the trace file.
const LevelTrace = slog.LevelDebug - 4

// TraceFile is the name of the tick trace written under the trace directory.
const TraceFile = "ticks.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TickRecord is one line of the tick trace.
type TickRecord struct {
	RunID    string `json:"run_id"`
	Tick     int    `json:"tick"`
	Codeword int    `json:"codeword"`
	Flips    int    `json:"flips"`
	Counts   []int  `json:"counts"`
}

// TickTrace writes TickRecords to a JSONL file.
// It is safe for concurrent use. A nil TickTrace is safe to use;
// all methods are no-ops on nil receiver.
type TickTrace struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewTickTrace creates a trace writing to dir/ticks.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewTickTrace(dir string, level string) *TickTrace {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, TraceFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &TickTrace{file: f, enc: json.NewEncoder(f)}
}

// Log writes one record as a single JSONL line with a "time" field.
// Safe to call on nil receiver.
func (tt *TickTrace) Log(rec TickRecord) {
	if tt == nil || tt.file == nil {
		return
	}

	line := struct {
		TickRecord
		Time string `json:"time"`
	}{rec, time.Now().UTC().Format(time.RFC3339Nano)}

	tt.mu.Lock()
	defer tt.mu.Unlock()

	_ = tt.enc.Encode(line)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tt *TickTrace) Close() {
	if tt == nil || tt.file == nil {
		return
	}

	tt.mu.Lock()
	defer tt.mu.Unlock()

	tt.file.Close()
	tt.file = nil
}
