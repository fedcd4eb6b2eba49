package canopy

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	debugOnce   sync.Once
	debugLogger zerolog.Logger
)

func debugLogFilePath() string {
	if v := strings.TrimSpace(os.Getenv("CANOPY_DEBUG_LOG")); v != "" {
		return v
	}
	return filepath.Join(os.TempDir(), "canopy-debug.log")
}

// debugLog returns the process-wide file logger. Logging failures are
// swallowed: a broken debug log must never affect a command.
func debugLog() *zerolog.Logger {
	debugOnce.Do(func() {
		debugLogger = zerolog.Nop()
		path := debugLogFilePath()
		if strings.TrimSpace(path) == "" {
			return
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		debugLogger = zerolog.New(f).With().Timestamp().Int("pid", os.Getpid()).Logger()
	})
	return &debugLogger
}

func debugLogf(format string, args ...any) {
	debugLog().Debug().Msgf(format, args...)
}
