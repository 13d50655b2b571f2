// Package export dumps finalized backtest results for offline inspection.
// Dumping is gated behind the DEBUG_DUMP env var so normal runs stay quiet.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	json "github.com/goccy/go-json"

	"autotrader/internal/backtest"
)

func allowDump() bool {
	if os.Getenv("DEBUG_DUMP") == "1" {
		slog.Info("DEBUG_DUMP=1, dumping result to stderr")
		return true
	}
	return false
}

// DumpResult writes the result as indented JSON to stderr when DEBUG_DUMP=1.
func DumpResult(result *backtest.Result) {
	if !allowDump() {
		return
	}
	if err := WriteResult(os.Stderr, result); err != nil {
		slog.Error("failed to dump result", "error", err)
	}
}

// WriteResult encodes the result as indented JSON to w.
func WriteResult(w io.Writer, result *backtest.Result) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if _, err := w.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
