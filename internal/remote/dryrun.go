package remote

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/rs/zerolog"
)

// DryRunExecutor prints every command and upload instead of executing them,
// reporting success for each so the full stage sequence can be previewed
// without touching the target.
type DryRunExecutor struct {
	logger zerolog.Logger
	out    io.Writer
}

// NewDryRunExecutor creates an Executor that writes its preview to out.
func NewDryRunExecutor(logger zerolog.Logger, out io.Writer) *DryRunExecutor {
	return &DryRunExecutor{
		logger: logger.With().Str("component", "dry-run").Logger(),
		out:    out,
	}
}

func (d *DryRunExecutor) Run(_ context.Context, cmd string) (Result, error) {
	d.logger.Debug().Str("cmd", cmd).Msg("dry-run command")
	for _, line := range strings.Split(strings.TrimRight(cmd, "\n"), "\n") {
		fmt.Fprintf(d.out, "  [dry-run] %s\n", line)
	}
	return Result{ExitCode: 0}, nil
}

func (d *DryRunExecutor) Upload(_ context.Context, src io.Reader, remotePath string, mode fs.FileMode) error {
	// Drain src so callers observe the same reader behavior as a real upload.
	n, err := io.Copy(io.Discard, src)
	if err != nil {
		return fmt.Errorf("read upload source for %s: %w", remotePath, err)
	}
	fmt.Fprintf(d.out, "  [dry-run] upload %d bytes to %s (mode %03o)\n", n, remotePath, mode.Perm())
	return nil
}

func (d *DryRunExecutor) Stream(_ context.Context, cmd string, _ io.Writer) error {
	fmt.Fprintf(d.out, "  [dry-run] %s\n", cmd)
	return nil
}

func (d *DryRunExecutor) Close() error { return nil }
