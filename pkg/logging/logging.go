// Package logging configures the process-wide zerolog logger used by every
// other package via github.com/rs/zerolog/log's global logger, matching the
// Str/Int/Err/Msg chaining style used throughout the scheduler's internal
// packages.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure sets the global zerolog level and output format. levelName is
// one of debug/info/warn/error; pretty selects the human-readable console
// writer over structured JSON, for local development.
func Configure(levelName string, pretty bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer = os.Stderr
	if pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: writer}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}
