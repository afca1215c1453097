package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// commandPersister delegates a save pass to a host-supplied hook command
type commandPersister struct {
	args             []string
	unloadedExitCode int
}

// NewCommandPersister creates a Persister that runs args as a hook command.
// An exit status equal to unloadedExitCode (when non-zero) maps to ErrComponentUnloaded.
func NewCommandPersister(args []string, unloadedExitCode int) (Persister, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, fmt.Errorf("command is required")
	}

	return &commandPersister{
		args:             args,
		unloadedExitCode: unloadedExitCode,
	}, nil
}

// Persist runs the hook command and classifies its exit status
func (c *commandPersister) Persist(ctx context.Context) error {
	//nolint:gosec // G204: the command comes from operator configuration
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		slog.Debug("Persist hook completed", "command", c.args[0])
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && c.unloadedExitCode != 0 && exitErr.ExitCode() == c.unloadedExitCode {
		return fmt.Errorf("persist hook %s exited with %d: %w", c.args[0], exitErr.ExitCode(), ErrComponentUnloaded)
	}

	return fmt.Errorf("persist hook %s failed: %w (output: %s)",
		c.args[0], err, strings.TrimSpace(string(output)))
}
