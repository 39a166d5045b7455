package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.False(t, res.TimedOut)
}

func TestRunSuccess(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 0"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunUsesWorkdir(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo hi > produced.txt"},
		Workdir: dir,
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)

	_, err = os.Stat(filepath.Join(dir, "produced.txt"))
	require.NoError(t, err)
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	start := time.Now()
	res, err := Run(context.Background(), Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "sleep 10"},
		Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunSpawnFailureIsAnError(t *testing.T) {
	_, err := Run(context.Background(), Spec{
		Command: "/no/such/binary-anywhere",
	})
	require.Error(t, err)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res, err := Run(ctx, Spec{
		Command: "/bin/sh",
		Args:    []string{"-c", "sleep 10"},
	})
	// Killed by cancellation, not by timeout: reported as a non-zero exit.
	require.NoError(t, err)
	assert.False(t, res.TimedOut)
	assert.NotEqual(t, 0, res.ExitCode)
}
