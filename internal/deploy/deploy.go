// Package deploy implements the deployment workflow for the arbitrage bot:
// payload transfer, Python dependency installation, systemd unit install and
// the post-restart health check, composed into a fixed fail-fast sequence.
package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wjhpong/binancemakertaker/internal/config"
	"github.com/wjhpong/binancemakertaker/internal/remote"
)

const totalStages = 5

// Deployer runs the five deployment stages against one target. It owns the
// sequencing and the run outcome; each stage owns only its own remote side
// effects. It assumes exclusive access to the target: nothing guards against
// two operators deploying to the same host at once.
type Deployer struct {
	logger  zerolog.Logger
	exec    remote.Executor
	target  remote.Target
	man     *config.Manifest
	baseDir string
	runID   string
	out     io.Writer
}

// DeployerParams collects the inputs for NewDeployer. Out defaults to
// stdout, BaseDir to the current directory and RunID to a fresh UUID.
type DeployerParams struct {
	Exec     remote.Executor
	Target   remote.Target
	Manifest *config.Manifest
	BaseDir  string
	RunID    string
	Out      io.Writer
}

// NewDeployer creates a Deployer for a single run.
func NewDeployer(logger zerolog.Logger, p DeployerParams) *Deployer {
	if p.Out == nil {
		p.Out = os.Stdout
	}
	if p.BaseDir == "" {
		p.BaseDir = "."
	}
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	return &Deployer{
		logger:  logger.With().Str("component", "deployer").Logger(),
		exec:    p.Exec,
		target:  p.Target,
		man:     p.Manifest,
		baseDir: p.BaseDir,
		runID:   p.RunID,
		out:     p.Out,
	}
}

// Run executes all stages in order, halting on the first failure. The
// cheat-sheet prints on success and on a failed health check; a health-check
// failure is reported as an error wrapping ErrServiceInactive.
func (d *Deployer) Run(ctx context.Context) error {
	start := time.Now()
	d.logger.Info().
		Str("remote_dir", d.man.RemoteDir).
		Str("unit", d.man.Service.Name).
		Msg("deployment starting")

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"Preparing remote directory " + d.man.RemoteDir, d.prepareRemoteDir},
		{"Copying bot files", d.transferPayload},
		{"Installing Python dependencies", d.installDependencies},
		{"Installing systemd service " + d.man.Service.Name, d.installService},
		{"Restarting service and checking health", d.restartAndVerify},
	}

	for i, stage := range stages {
		fmt.Fprintf(d.out, "[%d/%d] %s\n", i+1, totalStages, stage.name)
		if err := stage.fn(ctx); err != nil {
			d.logger.Error().Err(err).Int("stage", i+1).Msg("stage failed")
			if errors.Is(err, ErrServiceInactive) {
				d.printCheatSheet()
			}
			return fmt.Errorf("stage %d/%d: %w", i+1, totalStages, err)
		}
	}

	fmt.Fprintf(d.out, "\nDeployed %s to %s in %s.\n",
		d.man.Service.Name, d.target, time.Since(start).Round(time.Second))
	d.printCheatSheet()
	d.logger.Info().Dur("elapsed", time.Since(start)).Msg("deployment complete")
	return nil
}

// run executes one remote command and converts a non-zero exit into an error
// carrying the command's combined output.
func (d *Deployer) run(ctx context.Context, desc, cmd string) (remote.Result, error) {
	d.logger.Debug().Str("cmd", cmd).Msg(desc)
	res, err := d.exec.Run(ctx, cmd)
	if err != nil {
		return res, fmt.Errorf("%s: %w", desc, err)
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("%s: exit status %d: %s", desc, res.ExitCode, bytes.TrimSpace(res.Output))
	}
	return res, nil
}

// printIndented writes remote output aligned under the stage progress lines.
func (d *Deployer) printIndented(b []byte) {
	out := strings.TrimRight(string(b), "\n")
	if out == "" {
		return
	}
	for _, line := range strings.Split(out, "\n") {
		fmt.Fprintf(d.out, "      %s\n", line)
	}
}
