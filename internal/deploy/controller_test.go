package deploy

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wjhpong/binancemakertaker/internal/config"
	"github.com/wjhpong/binancemakertaker/internal/remote"
)

func newTestController(fake *fakeExecutor) (*Controller, *bytes.Buffer) {
	man := config.Default()
	man.Health.StartupDelaySecs = 0

	var out bytes.Buffer
	return NewController(zerolog.Nop(), fake, man, &out), &out
}

func TestController_Status(t *testing.T) {
	fake := &fakeExecutor{rules: []fakeRule{
		{match: "systemctl status", result: remote.Result{ExitCode: 3, Output: []byte("inactive (dead)\n")}},
	}}
	c, out := newTestController(fake)

	require.NoError(t, c.Status(context.Background()))
	assert.True(t, fake.ran("systemctl status arb-bot --no-pager -l"))
	assert.Equal(t, "inactive (dead)\n", out.String())
}

func TestController_Logs(t *testing.T) {
	fake := &fakeExecutor{rules: []fakeRule{
		{match: "journalctl", result: remote.Result{ExitCode: 0, Output: []byte("line 1\nline 2\n")}},
	}}
	c, out := newTestController(fake)

	require.NoError(t, c.Logs(context.Background(), 20, false))
	assert.True(t, fake.ran("sudo journalctl -u arb-bot -n 20 --no-pager"))
	assert.Equal(t, "line 1\nline 2\n", out.String())
	assert.Empty(t, fake.streams)
}

func TestController_LogsFollow(t *testing.T) {
	fake := &fakeExecutor{}
	c, _ := newTestController(fake)

	require.NoError(t, c.Logs(context.Background(), 100, true))
	require.Len(t, fake.streams, 1)
	assert.Contains(t, fake.streams[0], "journalctl -u arb-bot -n 100 --no-pager -f")
	assert.Empty(t, fake.cmds)
}

func TestController_Restart(t *testing.T) {
	fake := &fakeExecutor{rules: []fakeRule{
		{match: "is-active", result: remote.Result{ExitCode: 0, Output: []byte("active\n")}},
	}}
	c, out := newTestController(fake)

	require.NoError(t, c.Restart(context.Background()))
	assert.True(t, fake.ran("sudo systemctl restart arb-bot"))
	assert.Equal(t, "arb-bot is active\n", out.String())
}

func TestController_RestartInactive(t *testing.T) {
	fake := &fakeExecutor{rules: []fakeRule{
		{match: "is-active", result: remote.Result{ExitCode: 3, Output: []byte("failed\n")}},
	}}
	c, out := newTestController(fake)

	err := c.Restart(context.Background())
	require.ErrorIs(t, err, ErrServiceInactive)
	assert.Equal(t, "arb-bot is failed\n", out.String())
}

func TestController_Stop(t *testing.T) {
	fake := &fakeExecutor{}
	c, out := newTestController(fake)

	require.NoError(t, c.Stop(context.Background()))
	assert.True(t, fake.ran("sudo systemctl stop arb-bot"))
	assert.Equal(t, "arb-bot stopped\n", out.String())
}

func TestController_StopFailure(t *testing.T) {
	fake := &fakeExecutor{rules: []fakeRule{
		{match: "systemctl stop", result: remote.Result{ExitCode: 5, Output: []byte("Failed to stop arb-bot.service: Unit not loaded.\n")}},
	}}
	c, _ := newTestController(fake)

	err := c.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 5")
	assert.Contains(t, err.Error(), "Unit not loaded")
}
