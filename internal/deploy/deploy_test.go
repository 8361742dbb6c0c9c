package deploy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wjhpong/binancemakertaker/internal/config"
	"github.com/wjhpong/binancemakertaker/internal/remote"
)

// fakeExecutor is a scripted Executor. Commands are matched against rules in
// order by substring; the first match decides the result. Unmatched commands
// succeed with empty output, so tests only script the branches they bend.
type fakeExecutor struct {
	rules   []fakeRule
	cmds    []string
	streams []string
	uploads []uploadRecord
	closed  bool

	uploadErrOn string
	uploadErr   error
}

type fakeRule struct {
	match  string
	result remote.Result
	err    error
}

type uploadRecord struct {
	path string
	mode fs.FileMode
	data []byte
}

func (f *fakeExecutor) Run(_ context.Context, cmd string) (remote.Result, error) {
	f.cmds = append(f.cmds, cmd)
	for _, r := range f.rules {
		if strings.Contains(cmd, r.match) {
			return r.result, r.err
		}
	}
	return remote.Result{ExitCode: 0}, nil
}

func (f *fakeExecutor) Upload(_ context.Context, src io.Reader, remotePath string, mode fs.FileMode) error {
	if f.uploadErrOn != "" && strings.Contains(remotePath, f.uploadErrOn) {
		return f.uploadErr
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	f.uploads = append(f.uploads, uploadRecord{path: remotePath, mode: mode, data: data})
	return nil
}

func (f *fakeExecutor) Stream(_ context.Context, cmd string, _ io.Writer) error {
	f.streams = append(f.streams, cmd)
	return nil
}

func (f *fakeExecutor) Close() error {
	f.closed = true
	return nil
}

// ran reports whether any executed command contains the substring.
func (f *fakeExecutor) ran(substr string) bool {
	for _, c := range f.cmds {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

func (f *fakeExecutor) uploadedPaths() []string {
	paths := make([]string, 0, len(f.uploads))
	for _, u := range f.uploads {
		paths = append(paths, u.path)
	}
	return paths
}

func writePayload(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("# "+f+"\n"), 0o644))
	}
	return dir
}

func testManifest(files ...string) *config.Manifest {
	m := config.Default()
	m.Payload.Files = files
	m.Health.StartupDelaySecs = 0
	return m
}

func newTestDeployer(t *testing.T, fake *fakeExecutor, man *config.Manifest, baseDir string) (*Deployer, *bytes.Buffer) {
	t.Helper()
	target, err := remote.ParseTarget("deploy-user@10.0.0.5")
	require.NoError(t, err)

	var out bytes.Buffer
	d := NewDeployer(zerolog.Nop(), DeployerParams{
		Exec:     fake,
		Target:   target,
		Manifest: man,
		BaseDir:  baseDir,
		RunID:    "testrun",
		Out:      &out,
	})
	return d, &out
}

// activeFake scripts the happy path: python3 present, restart succeeds,
// is-active reports active.
func activeFake() *fakeExecutor {
	return &fakeExecutor{rules: []fakeRule{
		{match: "is-active", result: remote.Result{ExitCode: 0, Output: []byte("active\n")}},
	}}
}

func TestDeployer_FullSuccess(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt", "config.yaml", ".env")
	man := testManifest("run.py", "requirements.txt", "config.yaml")

	// No python3 preinstalled: the apt bootstrap path must run.
	fake := &fakeExecutor{rules: []fakeRule{
		{match: "command -v python3", result: remote.Result{ExitCode: 1}},
		{match: "is-active", result: remote.Result{ExitCode: 0, Output: []byte("active\n")}},
	}}

	d, out := newTestDeployer(t, fake, man, dir)
	require.NoError(t, d.Run(context.Background()))

	for _, marker := range []string{"[1/5]", "[2/5]", "[3/5]", "[4/5]", "[5/5]"} {
		assert.Contains(t, out.String(), marker)
	}

	assert.True(t, fake.ran("mkdir -p /home/ubuntu/arbitrage-bot"))
	assert.True(t, fake.ran("apt-get install -y python3"))
	assert.True(t, fake.ran("pip install -r requirements.txt"))
	assert.True(t, fake.ran("systemctl daemon-reload"))
	assert.True(t, fake.ran("systemctl enable arb-bot"))
	assert.True(t, fake.ran("systemctl restart arb-bot"))

	assert.Contains(t, out.String(), "arb-bot is active")
	assert.Contains(t, out.String(), "Useful commands:")
	assert.Contains(t, out.String(), "deploy-user@10.0.0.5")
	assert.Contains(t, out.String(), "/home/ubuntu/arbitrage-bot")
}

func TestDeployer_UploadsPayloadThenSecretsThenUnit(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt", ".env")
	man := testManifest("run.py", "requirements.txt")

	fake := activeFake()
	d, _ := newTestDeployer(t, fake, man, dir)
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []string{
		"/home/ubuntu/arbitrage-bot/run.py",
		"/home/ubuntu/arbitrage-bot/requirements.txt",
		"/home/ubuntu/arbitrage-bot/.env",
		"/tmp/arb-bot-testrun.service",
	}, fake.uploadedPaths())

	assert.Equal(t, fs.FileMode(0o644), fake.uploads[0].mode)
	assert.Equal(t, fs.FileMode(0o600), fake.uploads[2].mode, "secrets file ships with restricted mode")
	assert.Contains(t, string(fake.uploads[3].data), "ExecStart=")
}

func TestDeployer_SecretsAbsentWarnsAndContinues(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt")
	man := testManifest("run.py", "requirements.txt")

	fake := activeFake()
	d, out := newTestDeployer(t, fake, man, dir)
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 1, strings.Count(out.String(), "WARNING: secrets file .env not found"))
	assert.NotContains(t, strings.Join(fake.uploadedPaths(), " "), ".env")
	assert.True(t, fake.ran("systemctl restart arb-bot"), "run must still reach the restart")
}

func TestDeployer_MissingRequiredFileAbortsBeforeUpload(t *testing.T) {
	dir := writePayload(t, "run.py")
	man := testManifest("run.py", "requirements.txt")

	fake := activeFake()
	d, out := newTestDeployer(t, fake, man, dir)
	err := d.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requirements.txt")
	assert.Empty(t, fake.uploads, "no partial upload of a subset")
	assert.NotContains(t, out.String(), "[3/5]")
}

func TestDeployer_DependencyFailureHaltsRun(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt", ".env")
	man := testManifest("run.py", "requirements.txt")

	fake := &fakeExecutor{rules: []fakeRule{
		{match: "pip install", result: remote.Result{ExitCode: 1, Output: []byte("resolver blew up")}},
	}}

	d, out := newTestDeployer(t, fake, man, dir)
	err := d.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "resolver blew up")

	assert.False(t, fake.ran("daemon-reload"), "service install must not run")
	assert.False(t, fake.ran("systemctl restart"), "service start must not run")
	assert.NotContains(t, out.String(), "[4/5]")
	assert.NotContains(t, out.String(), "[5/5]")
}

func TestDeployer_PackageReportFindsNothingStillSucceeds(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt", ".env")
	man := testManifest("run.py", "requirements.txt")

	// grep matching none of the expected packages exits 1. The report is
	// informational only and must not gate the run.
	fake := &fakeExecutor{rules: []fakeRule{
		{match: "grep -iE", result: remote.Result{ExitCode: 1}},
		{match: "is-active", result: remote.Result{ExitCode: 0, Output: []byte("active\n")}},
	}}

	d, out := newTestDeployer(t, fake, man, dir)
	require.NoError(t, d.Run(context.Background()))

	assert.NotContains(t, out.String(), "installed packages of interest")
	assert.Contains(t, out.String(), "arb-bot is active")
}

func TestDeployer_PackageReportTransportErrorStillSucceeds(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt", ".env")
	man := testManifest("run.py", "requirements.txt")

	fake := &fakeExecutor{rules: []fakeRule{
		{match: "grep -iE", err: errors.New("connection lost")},
		{match: "is-active", result: remote.Result{ExitCode: 0, Output: []byte("active\n")}},
	}}

	d, out := newTestDeployer(t, fake, man, dir)
	require.NoError(t, d.Run(context.Background()))

	assert.True(t, fake.ran("systemctl restart arb-bot"), "run must still reach the restart")
	assert.Contains(t, out.String(), "arb-bot is active")
}

func TestDeployer_VenvPathWithSpacesIsQuoted(t *testing.T) {
	man := testManifest("run.py")
	man.Python.VenvDir = "venv dir"

	fake := activeFake()
	d, _ := newTestDeployer(t, fake, man, t.TempDir())
	require.NoError(t, d.installDependencies(context.Background()))

	assert.True(t, fake.ran("[ -d 'venv dir' ] || python3 -m venv 'venv dir'"))
	assert.True(t, fake.ran("'venv dir/bin/pip' install --upgrade pip"))
	assert.True(t, fake.ran("'venv dir/bin/pip' install -r requirements.txt"))
}

func TestDeployer_InactiveServicePrintsJournalAndCheatSheet(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt", ".env")
	man := testManifest("run.py", "requirements.txt")

	fake := &fakeExecutor{rules: []fakeRule{
		{match: "is-active", result: remote.Result{ExitCode: 3, Output: []byte("inactive\n")}},
		{match: "journalctl", result: remote.Result{ExitCode: 0, Output: []byte("boom line 1\nboom line 2\n")}},
	}}

	d, out := newTestDeployer(t, fake, man, dir)
	err := d.Run(context.Background())

	require.ErrorIs(t, err, ErrServiceInactive)
	assert.True(t, fake.ran("journalctl -u arb-bot -n 50"))
	assert.Contains(t, out.String(), "arb-bot is inactive, recent logs:")
	assert.Contains(t, out.String(), "boom line 1")
	assert.Contains(t, out.String(), "Useful commands:", "cheat-sheet still prints on a failed health check")
}

func TestDeployer_DoubleRunIssuesSameCommands(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt", ".env")
	man := testManifest("run.py", "requirements.txt")

	first := activeFake()
	d1, _ := newTestDeployer(t, first, man, dir)
	require.NoError(t, d1.Run(context.Background()))

	second := activeFake()
	d2, _ := newTestDeployer(t, second, man, dir)
	require.NoError(t, d2.Run(context.Background()))

	assert.Equal(t, first.cmds, second.cmds)
	assert.Equal(t, first.uploadedPaths(), second.uploadedPaths())
}

func TestDeployer_UploadFailureIsFatal(t *testing.T) {
	dir := writePayload(t, "run.py", "requirements.txt", ".env")
	man := testManifest("run.py", "requirements.txt")

	fake := activeFake()
	fake.uploadErrOn = "run.py"
	fake.uploadErr = io.ErrClosedPipe

	d, _ := newTestDeployer(t, fake, man, dir)
	err := d.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload run.py")
	assert.False(t, fake.ran("pip install"))
}

func TestFakeExecutor_ImplementsExecutor(t *testing.T) {
	var _ remote.Executor = (*fakeExecutor)(nil)
}
