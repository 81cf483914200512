// Package executil provides subprocess execution utilities.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const maxStderrLen = 500

// limitedWriter caps writes to a bytes.Buffer at a maximum byte count.
// Bytes beyond the limit are silently discarded.
type limitedWriter struct {
	buf *bytes.Buffer
	n   int64
	max int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.n >= w.max {
		return len(p), nil
	}
	remaining := w.max - w.n
	origLen := len(p)
	if int64(origLen) > remaining {
		p = p[:remaining]
	}
	n, err := w.buf.Write(p)
	w.n += int64(n)
	if err != nil {
		return n, err
	}
	return origLen, nil
}

// Executor runs external commands.
type Executor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// RunEnv executes a command with extra environment variables appended
	// to the inherited environment.
	RunEnv(ctx context.Context, env []string, cmd string, args ...string) ([]byte, error)
}

// RealExecutor calls actual external commands.
type RealExecutor struct{}

// Run executes a command and returns its standard output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return e.RunEnv(ctx, nil, cmd, args...)
}

// RunEnv executes a command with extra environment variables and returns its
// standard output. Stdout and stderr are kept separate so machine-readable
// output (diffs, hashes) is never polluted. On failure, stderr is folded
// into the returned error, capped at 500 bytes. The original *exec.ExitError
// is preserved via wrapping so callers can inspect exit codes with errors.As.
func (e *RealExecutor) RunEnv(ctx context.Context, env []string, cmd string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	if len(env) > 0 {
		c.Env = append(os.Environ(), env...)
	}

	var stdout, errBuf bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &limitedWriter{buf: &errBuf, max: maxStderrLen}

	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(errBuf.String())
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("exec %s: %s: %w", cmd, msg, err)
		}
		return stdout.Bytes(), fmt.Errorf("exec %s: %w", cmd, err)
	}
	return stdout.Bytes(), nil
}
