package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wjhpong/binancemakertaker/internal/remote"
)

func (d *Deployer) prepareRemoteDir(ctx context.Context) error {
	_, err := d.run(ctx, "create remote directory", "mkdir -p "+remote.Quote(d.man.RemoteDir))
	return err
}

// transferPayload copies the payload set into the remote directory. Required
// files are checked locally before the first upload so a missing file never
// leaves a partial payload behind. The secrets file ships only when present;
// its absence is a warning, surfaced again by the health check if the bot
// needs it to start.
func (d *Deployer) transferPayload(ctx context.Context) error {
	var missing []string
	for _, f := range d.man.Payload.Files {
		if _, err := os.Stat(filepath.Join(d.baseDir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required payload files: %s", strings.Join(missing, ", "))
	}

	secrets := d.man.Payload.SecretsFile
	haveSecrets := false
	if secrets != "" {
		if _, err := os.Stat(filepath.Join(d.baseDir, secrets)); err == nil {
			haveSecrets = true
		} else {
			fmt.Fprintf(d.out, "      WARNING: secrets file %s not found locally, deploying without it\n", secrets)
			d.logger.Warn().Str("file", secrets).Msg("secrets file missing, continuing")
		}
	}

	for _, f := range d.man.Payload.Files {
		if err := d.uploadFile(ctx, f, 0o644); err != nil {
			return err
		}
	}

	count := len(d.man.Payload.Files)
	if haveSecrets {
		if err := d.uploadFile(ctx, secrets, 0o600); err != nil {
			return err
		}
		count++
	}

	fmt.Fprintf(d.out, "      copied %d files to %s\n", count, d.man.RemoteDir)
	return nil
}

func (d *Deployer) uploadFile(ctx context.Context, name string, mode fs.FileMode) error {
	f, err := os.Open(filepath.Join(d.baseDir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	remotePath := path.Join(d.man.RemoteDir, name)
	if err := d.exec.Upload(ctx, f, remotePath, mode); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}
