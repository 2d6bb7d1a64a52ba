package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-helpdesk-backend/internal/sysutil"
)

// LogOptions configures the root logger.
type LogOptions struct {
	Level   string    // LOG_LEVEL
	Pretty  bool      // LOG_PRETTY: human-readable console output
	Service string    // added as "service" to every event
	Out     io.Writer // defaults to stderr
}

// SetupLogging sets the global level and replaces log.Logger. It returns the
// installed logger for callers that prefer passing it explicitly.
func SetupLogging(opts LogOptions) zerolog.Logger {
	sysutil.SetLogLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	log.Logger = ctx.Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return log.Logger
}
