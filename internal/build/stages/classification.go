package stages

import (
	"errors"

	"git.home.luguber.info/inful/easepack/internal/build/models"
)

// StageOutcome is the normalized result of stage execution.
type StageOutcome struct {
	Stage     models.StageName
	Error     *models.StageError
	Result    models.StageResult
	IssueCode models.ReportIssueCode
	Severity  models.IssueSeverity
	Transient bool
	Abort     bool
}

// resultFromStageErrorKind maps a StageErrorKind to a StageResult.
func resultFromStageErrorKind(k models.StageErrorKind) models.StageResult {
	switch k {
	case models.StageErrorWarning:
		return models.StageResultWarning
	case models.StageErrorCanceled:
		return models.StageResultCanceled
	case models.StageErrorFatal:
		return models.StageResultFatal
	default:
		return models.StageResultFatal
	}
}

// severityFromStageErrorKind maps StageErrorKind to IssueSeverity.
func severityFromStageErrorKind(k models.StageErrorKind) models.IssueSeverity {
	if k == models.StageErrorWarning {
		return models.SeverityWarning
	}
	return models.SeverityError
}

// ClassifyStageResult converts a raw error from a stage into a StageOutcome.
func ClassifyStageResult(stage models.StageName, err error) StageOutcome {
	if err == nil {
		return StageOutcome{Stage: stage, Result: models.StageResultSuccess}
	}

	var se *models.StageError
	if !errors.As(err, &se) {
		// Not a StageError - treat as fatal
		se = models.NewFatalStageError(stage, err)
	}

	if se.Kind == models.StageErrorCanceled {
		return StageOutcome{
			Stage:     stage,
			Error:     se,
			Result:    models.StageResultCanceled,
			IssueCode: models.IssueCanceled,
			Severity:  models.SeverityError,
			Abort:     true,
		}
	}

	return StageOutcome{
		Stage:     stage,
		Error:     se,
		Result:    resultFromStageErrorKind(se.Kind),
		IssueCode: classifyIssueCode(se),
		Severity:  severityFromStageErrorKind(se.Kind),
		Transient: se.Transient(),
		Abort:     se.Kind == models.StageErrorFatal,
	}
}

// classifyIssueCode maps the failing stage to its taxonomy code.
func classifyIssueCode(se *models.StageError) models.ReportIssueCode {
	switch se.Stage {
	case models.StageCleanArtifacts:
		return models.IssueCleanupFailure
	case models.StageInstallDeps:
		return models.IssueInstallFailure
	case models.StageGenerateIcon:
		if se.Kind == models.StageErrorWarning && errors.Is(se.Err, ErrIconGeneratorMissing) {
			return models.IssueIconGeneratorMissing
		}
		return models.IssueIconGeneration
	case models.StagePackage:
		return models.IssuePackagerExecution
	default:
		return models.IssueGenericStageError
	}
}
