package toolrunner

import (
	"context"
	"strings"
	"sync"
)

// Call records one tool invocation made through a FakeRunner.
type Call struct {
	Tool string
	Args []string
}

// String renders the call as a shell-like line, convenient for assertions.
func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Tool
	}
	return c.Tool + " " + strings.Join(c.Args, " ")
}

// FakeRunner is a test double recording invocations and returning scripted errors.
type FakeRunner struct {
	mu    sync.Mutex
	Calls []Call
	// Errors maps a tool name to the errors to return for its successive
	// invocations. When the slice is exhausted, further calls succeed.
	Errors map[string][]error
	// MissingTools makes LookPath fail for the listed tool names.
	MissingTools map[string]bool

	counts map[string]int
}

// NewFakeRunner constructs an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Errors:       make(map[string][]error),
		MissingTools: make(map[string]bool),
		counts:       make(map[string]int),
	}
}

// FailWith scripts errs as successive results for tool.
func (f *FakeRunner) FailWith(tool string, errs ...error) *FakeRunner {
	f.Errors[tool] = append(f.Errors[tool], errs...)
	return f
}

func (f *FakeRunner) Run(_ context.Context, tool string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Tool: tool, Args: append([]string(nil), args...)})
	n := f.counts[tool]
	f.counts[tool] = n + 1
	if errs := f.Errors[tool]; n < len(errs) {
		return errs[n]
	}
	return nil
}

func (f *FakeRunner) LookPath(tool string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MissingTools[tool] {
		return "", &missingToolError{tool: tool}
	}
	return "/usr/bin/" + tool, nil
}

// CallsFor returns the recorded invocations of the named tool.
func (f *FakeRunner) CallsFor(tool string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

type missingToolError struct{ tool string }

func (e *missingToolError) Error() string { return "tool not found: " + e.tool }
