package deploy

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"text/template"

	"github.com/wjhpong/binancemakertaker/internal/config"
	"github.com/wjhpong/binancemakertaker/internal/remote"
)

const serviceUnitTemplate = `[Unit]
Description={{ .Description }}
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User={{ .User }}
WorkingDirectory={{ .WorkingDir }}
ExecStart={{ .ExecStart }}
Restart=always
RestartSec={{ .RestartSec }}
{{- range .Environment }}
Environment={{ . }}
{{- end }}

StandardOutput=journal
StandardError=journal

NoNewPrivileges=true
ProtectSystem=full
ReadWritePaths={{ .WorkingDir }}

[Install]
WantedBy=multi-user.target
`

var serviceUnitTmpl = template.Must(template.New("botservice").Parse(serviceUnitTemplate))

type serviceUnitData struct {
	Description string
	User        string
	WorkingDir  string
	ExecStart   string
	RestartSec  int
	Environment []string
}

func renderServiceUnit(man *config.Manifest, user string) ([]byte, error) {
	data := serviceUnitData{
		Description: man.Service.Description,
		User:        user,
		WorkingDir:  man.RemoteDir,
		ExecStart: path.Join(man.RemoteDir, man.Python.VenvDir, "bin", "python") + " " +
			path.Join(man.RemoteDir, man.Payload.Entrypoint),
		RestartSec:  man.Service.RestartSec,
		Environment: formatUnitEnvironment(man.Service.Environment),
	}

	var buf bytes.Buffer
	if err := serviceUnitTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render service unit template: %w", err)
	}
	return buf.Bytes(), nil
}

// formatUnitEnvironment renders the environment map as sorted KEY="value"
// entries for the unit's Environment= lines.
func formatUnitEnvironment(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, fmt.Sprintf("%s=%q", k, env[k]))
	}
	return entries
}

func (d *Deployer) unitFilePath() string {
	return path.Join("/etc/systemd/system", d.man.Service.Name+".service")
}

// installService renders the unit, ships it to a run-scoped temp path and
// installs it with sudo. The unit file is rewritten unconditionally every
// run; daemon-reload and enable make the install idempotent.
func (d *Deployer) installService(ctx context.Context) error {
	unit, err := renderServiceUnit(d.man, d.target.User)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("/tmp/%s-%s.service", d.man.Service.Name, d.runID)
	unitPath := d.unitFilePath()

	d.logger.Info().Str("path", unitPath).Msg("writing systemd unit")

	if err := d.exec.Upload(ctx, bytes.NewReader(unit), tmpPath, 0o644); err != nil {
		return fmt.Errorf("upload unit file: %w", err)
	}

	_, err = d.run(ctx, "install systemd unit", remote.Script(
		fmt.Sprintf("sudo install -m 644 %s %s", remote.Quote(tmpPath), remote.Quote(unitPath)),
		"rm -f "+remote.Quote(tmpPath),
		"sudo systemctl daemon-reload",
		"sudo systemctl enable "+d.man.Service.Name,
	))
	return err
}
