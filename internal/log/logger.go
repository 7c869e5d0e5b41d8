package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultLevel = zerolog.InfoLevel

// New builds a console logger at the given level. Unknown or empty level
// strings fall back to info rather than failing startup.
func New(level string) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = defaultLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(lvl).With().Timestamp().Logger()

	return &logger
}
