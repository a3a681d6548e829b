package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

var (
	enabled     = os.Getenv("ACCBMAD_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	loggerMu sync.Mutex
	logger   *slog.Logger
	output   io.Writer = os.Stderr
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	verboseMode = verbose
	logger = nil
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetOutput redirects diagnostics; nil restores stderr.
func SetOutput(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
	logger = nil
}

// Logger returns the structured diagnostics logger. When debug output is off
// it discards everything, so callers never need to check Enabled first.
func Logger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger != nil {
		return logger
	}
	if !Enabled() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return logger
	}
	logger = slog.New(tint.NewHandler(output, &tint.Options{
		NoColor:    !isTerminal(output),
		TimeFormat: time.Kitchen,
		Level:      slog.LevelDebug,
	}))
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(w io.Writer, format string, args ...interface{}) {
	if !quietMode {
		fmt.Fprintf(w, format, args...)
	}
}
