package executil

import (
	"context"
	"strings"
	"sync"
)

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Cmd  string
	Args []string
	Env  []string
}

// Line returns the full command line, arguments space-joined.
func (c RecordedCommand) Line() string {
	return strings.Join(append([]string{c.Cmd}, c.Args...), " ")
}

// RecordingExecutor captures commands for testing.
// Configure Outputs and Errors maps to control return values.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	// Outputs maps command lines to their output. The key is the full
	// command line (e.g. "git rev-parse HEAD"); a bare command name
	// (e.g. "git") acts as a fallback when no exact line matches.
	Outputs map[string]string

	// Errors maps command lines to their error, with the same fallback.
	Errors map[string]error
}

// Run records the command and returns configured output/error.
func (e *RecordingExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return e.record(nil, cmd, args...)
}

// RunEnv records the command with its extra environment and returns
// configured output/error.
func (e *RecordingExecutor) RunEnv(ctx context.Context, env []string, cmd string, args ...string) ([]byte, error) {
	return e.record(env, cmd, args...)
}

func (e *RecordingExecutor) record(env []string, cmd string, args ...string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := RecordedCommand{Cmd: cmd, Args: args, Env: env}
	e.Commands = append(e.Commands, rec)

	var out string
	var err error

	if e.Outputs != nil {
		var ok bool
		if out, ok = e.Outputs[rec.Line()]; !ok {
			out = e.Outputs[cmd]
		}
	}
	if e.Errors != nil {
		var ok bool
		if err, ok = e.Errors[rec.Line()]; !ok {
			err = e.Errors[cmd]
		}
	}

	return []byte(out), err
}

// Reset clears recorded commands.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
}
