package deploy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wjhpong/binancemakertaker/internal/config"
	"github.com/wjhpong/binancemakertaker/internal/logging"
	"github.com/wjhpong/binancemakertaker/internal/remote"
)

const defaultManifestName = "botdeploy.yaml"

// Options carries the command-line inputs shared by the botctl commands.
type Options struct {
	TargetSpec   string
	KeyPath      string
	ManifestPath string
	DryRun       bool
}

// invocation bundles everything resolved from Options before any remote
// work: the parsed target, the manifest and a run-scoped logger.
type invocation struct {
	target  remote.Target
	man     *config.Manifest
	baseDir string
	runID   string
	logger  zerolog.Logger
}

func newInvocation(opts Options) (*invocation, error) {
	target, err := remote.ParseTarget(opts.TargetSpec)
	if err != nil {
		return nil, err
	}
	if opts.KeyPath != "" {
		target.KeyPath = opts.KeyPath
	} else {
		target.KeyPath = config.SSHKeyPath()
	}

	man, baseDir, err := loadManifest(opts.ManifestPath)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	return &invocation{
		target:  target,
		man:     man,
		baseDir: baseDir,
		runID:   runID,
		logger:  logging.NewLogger(config.LogLevel(), target.String(), runID),
	}, nil
}

// loadManifest resolves the manifest path: an explicit -f path, else
// botdeploy.yaml in the working directory, else built-in defaults. Payload
// files resolve relative to the manifest's directory.
func loadManifest(path string) (*config.Manifest, string, error) {
	if path == "" {
		if _, err := os.Stat(defaultManifestName); err != nil {
			return config.Default(), ".", nil
		}
		path = defaultManifestName
	}
	man, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return man, filepath.Dir(path), nil
}

func (inv *invocation) dial() (remote.Executor, error) {
	return remote.Dial(inv.logger, inv.target)
}

// Deploy runs the full deployment sequence against the target.
func Deploy(opts Options) error {
	inv, err := newInvocation(opts)
	if err != nil {
		return err
	}

	var exec remote.Executor
	if opts.DryRun {
		exec = remote.NewDryRunExecutor(inv.logger, os.Stdout)
	} else {
		exec, err = inv.dial()
		if err != nil {
			return err
		}
	}
	defer exec.Close()

	d := NewDeployer(inv.logger, DeployerParams{
		Exec:     exec,
		Target:   inv.target,
		Manifest: inv.man,
		BaseDir:  inv.baseDir,
		RunID:    inv.runID,
	})
	return d.Run(context.Background())
}

// Status prints the service's systemd status.
func Status(opts Options) error {
	return withController(opts, func(ctx context.Context, c *Controller) error {
		return c.Status(ctx)
	})
}

// Logs prints or follows the service journal.
func Logs(opts Options, lines int, follow bool) error {
	return withController(opts, func(ctx context.Context, c *Controller) error {
		return c.Logs(ctx, lines, follow)
	})
}

// Restart restarts the service and verifies it came back up.
func Restart(opts Options) error {
	return withController(opts, func(ctx context.Context, c *Controller) error {
		return c.Restart(ctx)
	})
}

// Stop stops the service.
func Stop(opts Options) error {
	return withController(opts, func(ctx context.Context, c *Controller) error {
		return c.Stop(ctx)
	})
}

func withController(opts Options, fn func(context.Context, *Controller) error) error {
	inv, err := newInvocation(opts)
	if err != nil {
		return err
	}

	exec, err := inv.dial()
	if err != nil {
		return err
	}
	defer exec.Close()

	c := NewController(inv.logger, exec, inv.man, os.Stdout)
	return fn(context.Background(), c)
}
