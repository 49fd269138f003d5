package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyTool       = "tool"
	KeyArtifact   = "artifact"
	KeyPath       = "path"
	KeyOutcome    = "outcome"
	KeyDurationMS = "duration_ms"
	KeyAttempt    = "attempt"
	KeySubject    = "subject"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Tool(t string) slog.Attr         { return slog.String(KeyTool, t) }
func Artifact(a string) slog.Attr     { return slog.String(KeyArtifact, a) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
