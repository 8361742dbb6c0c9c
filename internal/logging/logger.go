package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger creates a structured zerolog.Logger for one botctl invocation.
// Logs go to stderr so stdout stays reserved for operator-facing progress
// output. Non-empty context fields are added automatically.
func NewLogger(level, target, runID string) zerolog.Logger {
	ctx := zerolog.New(os.Stderr).With().Timestamp().Str("service", "botctl")

	if target != "" {
		ctx = ctx.Str("target", target)
	}
	if runID != "" {
		ctx = ctx.Str("run_id", runID)
	}

	logger := ctx.Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return logger.Level(lvl)
}
