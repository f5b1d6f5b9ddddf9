package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// init instantiates the global logger and sets up the zerolog parameters shared by every Logger.
func init() {
	GlobalLogger = NewLogger(zerolog.Disabled)

	// Stack traces of pkg/errors errors are marshalled, timestamps are UNIX.
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}
