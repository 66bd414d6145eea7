package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/vk/bundleforge/internal/ctxlog"
)

// Command is a single external process invocation.
type Command struct {
	Path string
	Args []string
	// Env is appended to the inherited environment.
	Env []string
}

// Runner executes commands. Implementations must return a *ToolError for a
// non-zero exit so callers can tell tool failures from launch failures.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// Timeout bounds every invocation. Zero means no limit.
	Timeout time.Duration
}

// NewExecRunner creates a process runner with the given per-invocation timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run starts the command, captures its combined output and waits for it. On
// cancellation or timeout the whole process group is killed.
func (r *ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.Command(c.Path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	setProcessGroup(cmd)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Debug("Running tool.", "tool", c.Path, "args", c.Args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return out.Bytes(), fmt.Errorf("%s interrupted: %w", c.Path, ctx.Err())
	case err = <-done:
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error("Tool failed.", "tool", c.Path, "exit_code", exitErr.ExitCode())
			return out.Bytes(), &ToolError{
				Tool:     c.Path,
				Args:     c.Args,
				ExitCode: exitErr.ExitCode(),
				Output:   out.Bytes(),
			}
		}
		return out.Bytes(), fmt.Errorf("failed to run %s: %w", c.Path, err)
	}
	return out.Bytes(), nil
}
