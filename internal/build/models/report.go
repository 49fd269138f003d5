package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"git.home.luguber.info/inful/easepack/internal/metrics"
	"git.home.luguber.info/inful/easepack/internal/version"
)

// DetectToolVersion attempts to detect the version of an external tool on PATH
// by running it with --version.
func DetectToolVersion(ctx context.Context, tool string) string {
	path, err := exec.LookPath(tool)
	if err != nil {
		return ""
	}
	// #nosec G204 - path comes from config-named tools resolved via LookPath
	cmd := exec.CommandContext(ctx, path, "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ""
	}
	return ParseToolVersion(string(output))
}

// ParseToolVersion extracts the semantic version from tool version output.
func ParseToolVersion(output string) string {
	versionRegex := regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)
	matches := versionRegex.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// NewBuildReport constructs a new BuildReport.
func NewBuildReport(ctx context.Context, buildID, appName string, cfgToolPackager, cfgToolPython string) *BuildReport {
	return &BuildReport{
		SchemaVersion:      1,
		BuildID:            buildID,
		App:                appName,
		Start:              time.Now(),
		StageDurations:     make(map[string]time.Duration),
		StageErrorKinds:    make(map[StageName]StageErrorKind),
		StageCounts:        make(map[StageName]StageCount),
		EasepackVersion:    version.Version,
		PackagerVersion:    DetectToolVersion(ctx, cfgToolPackager),
		InterpreterVersion: DetectToolVersion(ctx, cfgToolPython),
	}
}

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// BuildReport captures high-level metrics about a packaging run.
type BuildReport struct {
	SchemaVersion   int
	BuildID         string
	App             string
	Start           time.Time
	End             time.Time
	Errors          []error // fatal errors causing build abortion
	Warnings        []error // non-fatal issues (e.g., missing icon generator)
	StageDurations  map[string]time.Duration
	StageErrorKinds map[StageName]StageErrorKind // stage -> error kind (fatal|warning|canceled)
	StageCounts     map[StageName]StageCount     // per-stage classification counts
	// ArtifactsRemoved counts stale workspace paths deleted during cleanup.
	ArtifactsRemoved int
	// ArtifactsAbsent counts configured artifact paths that were already gone.
	ArtifactsAbsent int
	// IconGenerated is true when the generator script was found and invoked successfully.
	IconGenerated bool
	// Packaged is true when the packaging tool invocation completed successfully.
	Packaged bool
	// OutputPath is the expected path of the packaged executable.
	OutputPath string
	// Retries is the total retry attempts (all stages combined).
	Retries int
	// RetriesExhausted is true if any stage exhausted its retry budget.
	RetriesExhausted bool
	// Outcome is the single source of truth outcome (typed).
	Outcome BuildOutcome
	// Issues captures structured machine-parsable taxonomy entries (warnings & errors).
	Issues []ReportIssue
	// GitCommit is the workspace HEAD commit at build time (empty outside a repository).
	GitCommit string
	// SourceHash is a content hash of the entry script and assets (for change skipping).
	SourceHash string
	// EasepackVersion is the version of the easepack binary that ran this build.
	EasepackVersion string
	// PackagerVersion is the detected packaging tool version (empty if not found).
	PackagerVersion string
	// InterpreterVersion is the detected interpreter version (empty if not found).
	InterpreterVersion string
}

// AddIssue appends a structured issue and mirrors severity into Errors/Warnings slices.
func (r *BuildReport) AddIssue(code ReportIssueCode, stage StageName, severity IssueSeverity, msg string, transient bool, err error) {
	issue := ReportIssue{Code: code, Stage: stage, Severity: severity, Message: msg, Transient: transient}
	r.Issues = append(r.Issues, issue)
	if err != nil {
		switch severity {
		case SeverityError:
			r.Errors = append(r.Errors, err)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, err)
		}
	}
}

// ReportIssueCode enumerates machine-parseable issue identifiers.
// These codes are stable contract and should only be appended (no reuse on removal).
type ReportIssueCode string

const (
	IssueCleanupFailure       ReportIssueCode = "CLEANUP_FAILURE"
	IssueInstallFailure       ReportIssueCode = "INSTALL_FAILURE"
	IssueIconGeneratorMissing ReportIssueCode = "ICON_GENERATOR_MISSING"
	IssueIconGeneration       ReportIssueCode = "ICON_GENERATION"
	IssuePackagerExecution    ReportIssueCode = "PACKAGER_EXECUTION"
	IssueCanceled             ReportIssueCode = "BUILD_CANCELED"
	IssueGenericStageError    ReportIssueCode = "GENERIC_STAGE_ERROR"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// ReportIssue is a structured taxonomy entry describing a discrete problem encountered.
type ReportIssue struct {
	Code      ReportIssueCode `json:"code"`
	Stage     StageName       `json:"stage"`
	Severity  IssueSeverity   `json:"severity"`
	Message   string          `json:"message"`
	Transient bool            `json:"transient"`
}

// StageCount aggregates counts of outcomes for a stage.
type StageCount struct {
	Success  int
	Warning  int
	Fatal    int
	Canceled int
}

// Finish sets the end time of the report.
func (r *BuildReport) Finish() { r.End = time.Now() }

// RecordStageResult updates BuildReport counters and emits metrics (if recorder non-nil).
func (r *BuildReport) RecordStageResult(stage StageName, res StageResult, recorder metrics.Recorder) {
	if r.StageCounts == nil {
		r.StageCounts = make(map[StageName]StageCount)
	}
	sc := r.StageCounts[stage]
	switch res {
	case StageResultSuccess:
		sc.Success++
		if recorder != nil {
			recorder.IncStageResult(string(stage), metrics.ResultSuccess)
		}
	case StageResultWarning:
		sc.Warning++
		if recorder != nil {
			recorder.IncStageResult(string(stage), metrics.ResultWarning)
		}
	case StageResultFatal:
		sc.Fatal++
		if recorder != nil {
			recorder.IncStageResult(string(stage), metrics.ResultFatal)
		}
	case StageResultCanceled:
		sc.Canceled++
		if recorder != nil {
			recorder.IncStageResult(string(stage), metrics.ResultCanceled)
		}
	case StageResultSkipped:
		// No counters for skipped yet
	}
	r.StageCounts[stage] = sc
}

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("app=%s duration=%s errors=%d warnings=%d stages=%d packaged=%t outcome=%s",
		r.App, dur.Truncate(time.Millisecond), len(r.Errors), len(r.Warnings), len(r.StageDurations), r.Packaged, string(r.Outcome))
}

// DeriveOutcome sets the Outcome field based on recorded errors/warnings.
func (r *BuildReport) DeriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Persist writes the report atomically into the provided root directory.
func (r *BuildReport) Persist(root string) error {
	if r.End.IsZero() {
		r.Finish()
		r.DeriveOutcome()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	// JSON
	jb, err := json.MarshalIndent(r.SanitizedCopy(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath := filepath.Join(root, "build-report.json")
	tmpJSON := jsonPath + ".tmp"
	if err := os.WriteFile(tmpJSON, jb, 0o600); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	// Text summary
	summaryPath := filepath.Join(root, "build-report.txt")
	tmpTxt := summaryPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.Summary()+"\n"), 0o600); err != nil {
		return fmt.Errorf("write temp report summary: %w", err)
	}
	if err := os.Rename(tmpTxt, summaryPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}

// SanitizedCopy returns a shallow copy with error fields converted to strings for JSON friendliness.
func (r *BuildReport) SanitizedCopy() *BuildReportSerializable {
	stageCounts := make(map[string]StageCount, len(r.StageCounts))
	for k, v := range r.StageCounts {
		stageCounts[string(k)] = v
	}
	sek := make(map[string]string, len(r.StageErrorKinds))
	for k, v := range r.StageErrorKinds {
		sek[string(k)] = string(v)
	}

	if r.StageDurations == nil {
		r.StageDurations = map[string]time.Duration{}
	}
	if r.Issues == nil {
		r.Issues = []ReportIssue{}
	}

	s := &BuildReportSerializable{
		SchemaVersion:      r.SchemaVersion,
		BuildID:            r.BuildID,
		App:                r.App,
		Start:              r.Start,
		End:                r.End,
		Errors:             make([]string, len(r.Errors)),
		Warnings:           make([]string, len(r.Warnings)),
		StageDurations:     r.StageDurations,
		StageErrorKinds:    sek,
		StageCounts:        stageCounts,
		ArtifactsRemoved:   r.ArtifactsRemoved,
		ArtifactsAbsent:    r.ArtifactsAbsent,
		IconGenerated:      r.IconGenerated,
		Packaged:           r.Packaged,
		OutputPath:         r.OutputPath,
		Retries:            r.Retries,
		RetriesExhausted:   r.RetriesExhausted,
		Outcome:            string(r.Outcome),
		Issues:             r.Issues,
		GitCommit:          r.GitCommit,
		SourceHash:         r.SourceHash,
		EasepackVersion:    r.EasepackVersion,
		PackagerVersion:    r.PackagerVersion,
		InterpreterVersion: r.InterpreterVersion,
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}

// BuildReportSerializable mirrors BuildReport but with string errors for JSON output.
type BuildReportSerializable struct {
	SchemaVersion      int                      `json:"schema_version"`
	BuildID            string                   `json:"build_id"`
	App                string                   `json:"app"`
	Start              time.Time                `json:"start"`
	End                time.Time                `json:"end"`
	Errors             []string                 `json:"errors"`
	Warnings           []string                 `json:"warnings"`
	StageDurations     map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds    map[string]string        `json:"stage_error_kinds"`
	StageCounts        map[string]StageCount    `json:"stage_counts"`
	ArtifactsRemoved   int                      `json:"artifacts_removed"`
	ArtifactsAbsent    int                      `json:"artifacts_absent"`
	IconGenerated      bool                     `json:"icon_generated"`
	Packaged           bool                     `json:"packaged"`
	OutputPath         string                   `json:"output_path,omitempty"`
	Retries            int                      `json:"retries"`
	RetriesExhausted   bool                     `json:"retries_exhausted"`
	Outcome            string                   `json:"outcome"`
	Issues             []ReportIssue            `json:"issues"`
	GitCommit          string                   `json:"git_commit,omitempty"`
	SourceHash         string                   `json:"source_hash,omitempty"`
	EasepackVersion    string                   `json:"easepack_version,omitempty"`
	PackagerVersion    string                   `json:"packager_version,omitempty"`
	InterpreterVersion string                   `json:"interpreter_version,omitempty"`
}
