// Package logging configures the process-wide logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var debugEnabled bool

// Init configures the global console logger on stderr. debug forces the
// debug level; otherwise level is parsed ("warn", "error", ...) and falls
// back to info when empty or unknown.
func Init(debug bool, level string) {
	debugEnabled = debug
	zerolog.SetGlobalLevel(ParseLevel(debug, level))
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}

// ParseLevel resolves the effective level.
func ParseLevel(debug bool, level string) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// DebugEnabled reports whether debug logging is enabled.
func DebugEnabled() bool {
	return debugEnabled
}
