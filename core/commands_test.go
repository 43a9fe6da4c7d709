package core

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/wireline/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func exec(t *testing.T, s *state.State, line string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	err := Exec(s, line, out)
	return out.String(), err
}

func TestExec_Table(t *testing.T) {
	s, peers := startNode(t, state.LocalCfg{Id: "A"}, "B")
	connectPeer(t, s, peers["B"])

	out, err := exec(t, s, "table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"Target", "Cost", "NextHop", "Interface"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"A", "0", "A", "LOCAL"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"B", "1", "B", "pipe:B"}, strings.Fields(lines[2]))

	short, err := exec(t, s, "t")
	require.NoError(t, err)
	assert.Equal(t, out, short)
}

func TestExec_Send(t *testing.T) {
	s, _ := startNode(t, state.LocalCfg{Id: "A"})
	events := subscribe(t, s)

	out, err := exec(t, s, "send A hello   there")
	require.NoError(t, err)
	assert.Contains(t, out, "delivered to A")
	assert.Equal(t, "hello   there", nextDelivery(t, events).Body)

	_, err = exec(t, s, "send A")
	assert.ErrorIs(t, err, ErrUsage)
	_, err = exec(t, s, "send Z hi")
	assert.ErrorIs(t, err, ErrRouteUnreachable)
}

func TestExec_Faults(t *testing.T) {
	s, _ := startNode(t, state.LocalCfg{Id: "A"})

	_, err := exec(t, s, "corrupt on")
	require.NoError(t, err)
	n, _ := s.Faults.Armed()
	assert.Equal(t, 1, n)

	_, err = exec(t, s, "corrupt 3")
	require.NoError(t, err)
	n, _ = s.Faults.Armed()
	assert.Equal(t, 3, n)

	_, err = exec(t, s, "corrupt off")
	require.NoError(t, err)
	n, _ = s.Faults.Armed()
	assert.Zero(t, n)

	_, err = exec(t, s, "corrupt maybe")
	assert.ErrorIs(t, err, ErrUsage)

	_, err = exec(t, s, "loss on")
	require.NoError(t, err)
	_, loss := s.Faults.Armed()
	assert.True(t, loss)
	_, err = exec(t, s, "loss off")
	require.NoError(t, err)
	_, loss = s.Faults.Armed()
	assert.False(t, loss)
	_, err = exec(t, s, "loss")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestExec_Misc(t *testing.T) {
	s, _ := startNode(t, state.LocalCfg{Id: "A"})

	for _, cmd := range []string{"help", "h", "?"} {
		out, err := exec(t, s, cmd)
		require.NoError(t, err)
		assert.Equal(t, helpText, out)
	}
	out, err := exec(t, s, "   ")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = exec(t, s, "exit")
	assert.ErrorIs(t, err, ErrExit)
	_, err = exec(t, s, "QUIT")
	assert.ErrorIs(t, err, ErrExit)
	_, err = exec(t, s, "frobnicate")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = exec(t, s, "ping")
	assert.ErrorIs(t, err, ErrUsage)
	_, err = exec(t, s, "ping A zero")
	assert.ErrorIs(t, err, ErrUsage)
	out, err = exec(t, s, "ping A 1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 sent, 1 received, 0% loss")

	out, err = exec(t, s, "tracert A")
	require.NoError(t, err)
	assert.Contains(t, out, "trace complete")
}

func TestExec_Neighbours(t *testing.T) {
	s, peers := startNode(t, state.LocalCfg{Id: "A"}, "B")
	connectPeer(t, s, peers["B"])

	out, err := exec(t, s, "neighbours")
	require.NoError(t, err)
	assert.Contains(t, out, "pipe:B")

	out, err = exec(t, s, "links")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "pipe:B", strings.Fields(lines[1])[0])
}

func TestControlServer(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	startNode(t, state.LocalCfg{Id: "A", CtlSocket: sock})

	out, err := IPCExec(sock, "table", time.Second)
	require.NoError(t, err)
	assert.Contains(t, out, "LOCAL")

	out, err = IPCExec(sock, "frobnicate", time.Second)
	require.NoError(t, err)
	assert.Contains(t, out, "error: unknown command")

	out, err = IPCExec(sock, "exit", time.Second)
	require.NoError(t, err)
	assert.Contains(t, out, "interactive shell")
}

func TestStop_ReleasesResources(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sock := filepath.Join(t.TempDir(), "ctl.sock")
	s, err := Setup(state.LocalCfg{Id: "A", CtlSocket: sock}, slog.LevelWarn, nil)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		done <- Run(s)
	}()
	require.Eventually(t, s.Started.Load, time.Second, time.Millisecond)

	Stop(s)
	require.NoError(t, <-done)
	// a second stop is a no-op
	Stop(s)
	assert.NoFileExists(t, sock)
}

func TestSetup_RejectsInvalidConfig(t *testing.T) {
	_, err := Setup(state.LocalCfg{Id: "bad id"}, slog.LevelWarn, nil)
	assert.Error(t, err)
}
