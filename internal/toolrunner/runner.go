// Package toolrunner executes external build tools (pip, pyinstaller, the
// icon generator) with streamed output and context cancellation.
package toolrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	eperr "git.home.luguber.info/inful/easepack/internal/errors"
	"git.home.luguber.info/inful/easepack/internal/logfields"
)

// ExecRunner runs tools as child processes, streaming their combined output.
type ExecRunner struct {
	// Dir is the working directory for spawned tools (empty = inherit).
	Dir string
	// Stdout/Stderr receive the tool's output streams. Nil defaults to the
	// process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner constructs an ExecRunner rooted at dir.
func NewExecRunner(dir string) *ExecRunner {
	return &ExecRunner{Dir: dir, Stdout: os.Stdout, Stderr: os.Stderr}
}

// LookPath resolves a tool name against PATH.
func (r *ExecRunner) LookPath(tool string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", eperr.Wrap(err, eperr.CategoryRuntime, eperr.SeverityFatal, fmt.Sprintf("tool %q not found on PATH", tool))
	}
	return path, nil
}

// Run invokes the tool and blocks until it exits. A nonzero exit or spawn
// failure is returned as a categorized error carrying the exit detail.
func (r *ExecRunner) Run(ctx context.Context, tool string, args ...string) error {
	path, err := r.LookPath(tool)
	if err != nil {
		return err
	}
	slog.Debug("Executing tool", logfields.Tool(tool), logfields.Path(path), slog.Any("args", args))

	// #nosec G204 - tool names come from validated configuration
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return eperr.Wrap(err, eperr.CategoryRuntime, eperr.SeverityError,
				fmt.Sprintf("tool %s exited with code %d", tool, exitErr.ExitCode()))
		}
		return eperr.Wrap(err, eperr.CategoryRuntime, eperr.SeverityError, fmt.Sprintf("tool %s failed to run", tool))
	}
	return nil
}
