package models

import (
	"context"
	"io"

	"git.home.luguber.info/inful/easepack/internal/config"
	"git.home.luguber.info/inful/easepack/internal/metrics"
	"git.home.luguber.info/inful/easepack/internal/retry"
)

// ToolRunner abstracts external collaborator invocation so stages can be
// exercised with a fake in tests. Implementations block until the spawned
// process exits.
type ToolRunner interface {
	// Run invokes the named tool with the given arguments, streaming its
	// output, and returns an error for a nonzero exit.
	Run(ctx context.Context, tool string, args ...string) error
	// LookPath resolves a tool name to an executable path.
	LookPath(tool string) (string, error)
}

// FileChecker abstracts existence checks for optional collaborators
// (the icon generator script).
type FileChecker func(path string) bool

// BuildState is the shared mutable state threaded through pipeline stages.
type BuildState struct {
	ID       string
	Config   *config.Config
	Report   *BuildReport
	Runner   ToolRunner
	Recorder metrics.Recorder
	Retry    retry.Policy
	Exists   FileChecker

	// Out receives the completion banner; In supplies the acknowledgment
	// when the interactive pause is enabled.
	Out io.Writer
	In  io.Reader
}
