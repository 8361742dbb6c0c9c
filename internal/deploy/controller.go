package deploy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wjhpong/binancemakertaker/internal/config"
	"github.com/wjhpong/binancemakertaker/internal/remote"
)

// Controller runs one-shot service management commands against an already
// deployed host.
type Controller struct {
	logger zerolog.Logger
	exec   remote.Executor
	man    *config.Manifest
	out    io.Writer
}

// NewController creates a Controller. Out defaults to stdout.
func NewController(logger zerolog.Logger, exec remote.Executor, man *config.Manifest, out io.Writer) *Controller {
	if out == nil {
		out = os.Stdout
	}
	return &Controller{
		logger: logger.With().Str("component", "controller").Logger(),
		exec:   exec,
		man:    man,
		out:    out,
	}
}

// Status prints the systemd status block. systemctl status exits non-zero
// for inactive units while still printing useful state, so only transport
// failures are errors here.
func (c *Controller) Status(ctx context.Context) error {
	res, err := c.exec.Run(ctx,
		fmt.Sprintf("systemctl status %s --no-pager -l", c.man.Service.Name))
	if err != nil {
		return fmt.Errorf("query service status: %w", err)
	}
	_, err = c.out.Write(res.Output)
	return err
}

// Logs prints the most recent journal lines for the service, or streams the
// journal until interrupted when follow is set.
func (c *Controller) Logs(ctx context.Context, lines int, follow bool) error {
	name := c.man.Service.Name
	if follow {
		return c.exec.Stream(ctx,
			fmt.Sprintf("sudo journalctl -u %s -n %d --no-pager -f", name, lines), c.out)
	}

	res, err := c.exec.Run(ctx,
		fmt.Sprintf("sudo journalctl -u %s -n %d --no-pager", name, lines))
	if err != nil {
		return fmt.Errorf("fetch journal: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("fetch journal: exit status %d: %s", res.ExitCode, bytes.TrimSpace(res.Output))
	}
	_, err = c.out.Write(res.Output)
	return err
}

// Restart restarts the service and reports its state after the configured
// startup delay. An inactive service after the restart is an error wrapping
// ErrServiceInactive.
func (c *Controller) Restart(ctx context.Context) error {
	name := c.man.Service.Name
	c.logger.Info().Str("unit", name).Msg("restarting service")

	res, err := c.exec.Run(ctx, "sudo systemctl restart "+name)
	if err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("restart %s: exit status %d: %s", name, res.ExitCode, bytes.TrimSpace(res.Output))
	}

	time.Sleep(time.Duration(c.man.Health.StartupDelaySecs) * time.Second)

	stateRes, err := c.exec.Run(ctx, "systemctl is-active "+name)
	if err != nil {
		return fmt.Errorf("query service state: %w", err)
	}
	state := strings.TrimSpace(string(stateRes.Output))

	if stateRes.ExitCode == 0 {
		if state == "" {
			state = "active"
		}
		fmt.Fprintf(c.out, "%s is %s\n", name, state)
		return nil
	}
	if state == "" {
		state = "unknown"
	}
	fmt.Fprintf(c.out, "%s is %s\n", name, state)
	return fmt.Errorf("service %s reported %q after restart: %w", name, state, ErrServiceInactive)
}

// Stop stops the service. The unit stays enabled so the bot comes back on
// the next boot or deploy.
func (c *Controller) Stop(ctx context.Context) error {
	name := c.man.Service.Name
	c.logger.Info().Str("unit", name).Msg("stopping service")

	res, err := c.exec.Run(ctx, "sudo systemctl stop "+name)
	if err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("stop %s: exit status %d: %s", name, res.ExitCode, bytes.TrimSpace(res.Output))
	}
	fmt.Fprintf(c.out, "%s stopped\n", name)
	return nil
}
