package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/easepack/internal/build/models"
	"git.home.luguber.info/inful/easepack/internal/logfields"
)

// RunStages executes stages in order, recording timing and stopping on the
// first fatal error. When build.continue_on_error is set, fatal stage errors
// are recorded but execution proceeds; cancellation always aborts.
func RunStages(ctx context.Context, bs *models.BuildState, stages []models.StageDef) error {
	var firstFatal error
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := models.NewCanceledStageError(st.Name, ctx.Err())
			bs.Report.StageErrorKinds[st.Name] = se.Kind
			bs.Report.AddIssue(models.IssueCanceled, st.Name, models.SeverityError, se.Error(), false, se)
			bs.Report.RecordStageResult(st.Name, models.StageResultCanceled, bs.Recorder)
			return se
		default:
		}

		slog.Debug("Stage starting", logfields.Stage(string(st.Name)))
		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)

		bs.Report.StageDurations[string(st.Name)] = dur
		if bs.Recorder != nil {
			bs.Recorder.ObserveStageDuration(string(st.Name), dur)
		}

		out := ClassifyStageResult(st.Name, err)

		if out.Error != nil {
			bs.Report.StageErrorKinds[st.Name] = out.Error.Kind
			bs.Report.AddIssue(out.IssueCode, out.Stage, out.Severity, out.Error.Error(), out.Transient, out.Error)
		}

		bs.Report.RecordStageResult(st.Name, out.Result, bs.Recorder)

		slog.Debug("Stage complete",
			logfields.Stage(string(st.Name)),
			logfields.Outcome(string(out.Result)),
			logfields.DurationMS(float64(dur)/float64(time.Millisecond)))

		if out.Abort {
			if out.Result == models.StageResultCanceled {
				return out.Error
			}
			if bs.Config != nil && bs.Config.Build.ContinueOnError {
				slog.Warn("Stage failed; continuing because continue_on_error is set",
					logfields.Stage(string(st.Name)), logfields.Error(out.Error))
				if firstFatal == nil {
					firstFatal = out.Error
				}
				continue
			}
			if out.Error != nil {
				return out.Error
			}
			return fmt.Errorf("stage %s aborted", st.Name)
		}
	}
	return firstFatal
}
