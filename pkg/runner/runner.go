// Package runner executes the external community detection tool as a
// subprocess with a hard wall-clock budget.
//
// A non-zero exit code is a normal outcome, reported as data in the
// Result; only failures to spawn or to wait on the process surface as
// errors. On timeout the process is killed and any partial output it left
// behind is for the caller to discard.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Spec describes one invocation.
type Spec struct {
	// Command is the binary (or wrapper script) to run.
	Command string

	// Args are passed verbatim.
	Args []string

	// Workdir is the working directory; it must contain the staged
	// input the tool expects, and the tool writes its output there.
	Workdir string

	// Timeout is the hard wall-clock limit. Zero means no limit.
	Timeout time.Duration
}

// Result captures the outcome of a finished invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Run spawns the process and blocks until it exits, the timeout expires,
// or ctx is cancelled. Both output streams are captured fully.
func Run(ctx context.Context, spec Spec) (*Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...)
	cmd.Dir = spec.Workdir
	// Once the process itself is gone, don't keep waiting on the output
	// pipes: an orphaned grandchild can hold them open indefinitely.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		// Spawn or wait failure, not a tool outcome.
		return nil, err
	}

	res.ExitCode = 0
	return res, nil
}
