package deploy

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/wjhpong/binancemakertaker/internal/remote"
)

// installDependencies ensures the Python runtime and the bot's dependency
// environment. Runtime detection is existence-of-binary only: a preinstalled
// python3 is accepted as-is, whatever its version. The venv is created once
// and reused on redeploys, so packages dropped from requirements.txt linger
// until the venv is removed by hand.
func (d *Deployer) installDependencies(ctx context.Context) error {
	res, err := d.exec.Run(ctx, "command -v python3")
	if err != nil {
		return fmt.Errorf("detect python3: %w", err)
	}
	if res.ExitCode != 0 {
		fmt.Fprintf(d.out, "      python3 not found, installing via apt\n")
		d.logger.Info().Msg("python3 missing, bootstrapping via apt")
		if _, err := d.run(ctx, "install python3", remote.Script(
			"sudo apt-get update -y",
			"sudo DEBIAN_FRONTEND=noninteractive apt-get install -y python3 python3-venv python3-pip",
		)); err != nil {
			return err
		}
	}

	venvDir := d.man.Python.VenvDir
	pip := remote.Quote(path.Join(venvDir, "bin", "pip"))
	if _, err := d.run(ctx, "install dependencies", remote.Script(
		"cd "+remote.Quote(d.man.RemoteDir),
		fmt.Sprintf("[ -d %s ] || python3 -m venv %s", remote.Quote(venvDir), remote.Quote(venvDir)),
		pip+" install --upgrade pip",
		pip+" install -r "+remote.Quote(d.man.Python.Requirements),
	)); err != nil {
		return err
	}

	// Informational report for the operator. Its exit status never gates
	// the run: grep finding nothing is not a deployment failure.
	if len(d.man.Python.ExpectedPackages) > 0 {
		pattern := strings.Join(d.man.Python.ExpectedPackages, "|")
		cmd := fmt.Sprintf("cd %s && %s list 2>/dev/null | grep -iE %s",
			remote.Quote(d.man.RemoteDir), pip, remote.Quote(pattern))
		res, err := d.exec.Run(ctx, cmd)
		if err == nil && len(bytes.TrimSpace(res.Output)) > 0 {
			fmt.Fprintf(d.out, "      installed packages of interest:\n")
			d.printIndented(res.Output)
		}
	}

	return nil
}
