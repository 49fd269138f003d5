// Package build orchestrates the packaging pipeline end to end.
package build

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/easepack/internal/build/models"
	"git.home.luguber.info/inful/easepack/internal/build/stages"
	"git.home.luguber.info/inful/easepack/internal/config"
	"git.home.luguber.info/inful/easepack/internal/history"
	"git.home.luguber.info/inful/easepack/internal/logfields"
	"git.home.luguber.info/inful/easepack/internal/metrics"
	"git.home.luguber.info/inful/easepack/internal/notify"
	"git.home.luguber.info/inful/easepack/internal/retry"
	"git.home.luguber.info/inful/easepack/internal/toolrunner"
	"git.home.luguber.info/inful/easepack/internal/vcs"
	"git.home.luguber.info/inful/easepack/internal/workspace"
)

// Service runs packaging builds for a single configuration.
type Service struct {
	cfg       *config.Config
	runner    models.ToolRunner
	recorder  metrics.Recorder
	store     *history.Store
	publisher *notify.Publisher
	out       io.Writer
	in        io.Reader
}

// Option customizes Service construction (test seams and optional sinks).
type Option func(*Service)

// WithRunner replaces the external tool runner.
func WithRunner(r models.ToolRunner) Option { return func(s *Service) { s.runner = r } }

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(s *Service) { s.recorder = r } }

// WithHistory attaches a run-history store.
func WithHistory(h *history.Store) Option { return func(s *Service) { s.store = h } }

// WithPublisher attaches a build-event publisher.
func WithPublisher(p *notify.Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithStreams overrides the banner output and pause input streams.
func WithStreams(out io.Writer, in io.Reader) Option {
	return func(s *Service) { s.out = out; s.in = in }
}

// NewService constructs a build Service from config.
func NewService(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		runner:   toolrunner.NewExecRunner(cfg.Build.Root),
		recorder: metrics.NoopRecorder{},
		out:      os.Stdout,
		in:       os.Stdin,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes the full packaging pipeline and returns the finished report.
// The report is returned even on failure so callers can inspect and persist it.
func (s *Service) Run(ctx context.Context) (*models.BuildReport, error) {
	buildID := uuid.NewString()
	report := models.NewBuildReport(ctx, buildID, s.cfg.App.Name, s.cfg.Tools.PyInstaller, s.cfg.Tools.Python)
	s.stampProvenance(report)

	bs := &models.BuildState{
		ID:       buildID,
		Config:   s.cfg,
		Report:   report,
		Runner:   s.runner,
		Recorder: s.recorder,
		Retry:    retry.FromConfig(s.cfg.Retry),
		Out:      s.out,
		In:       s.in,
	}

	slog.Info("Build starting",
		logfields.BuildID(buildID),
		slog.String("app", s.cfg.App.Name),
		slog.String("entry", s.cfg.App.EntryScript))

	defs := models.NewPipeline().
		Add(models.StageCleanArtifacts, stages.StageCleanArtifacts).
		Add(models.StageInstallDeps, stages.StageInstallDeps).
		AddIf(s.cfg.App.IconGenerator != "", models.StageGenerateIcon, stages.StageGenerateIcon).
		Add(models.StagePackage, stages.StagePackage).
		Add(models.StageNotice, stages.StageNotice).
		Build()

	runErr := stages.RunStages(ctx, bs, defs)

	report.Finish()
	report.DeriveOutcome()
	s.recorder.ObserveBuildDuration(report.End.Sub(report.Start))
	s.recorder.IncBuildOutcome(string(report.Outcome))

	s.finalize(ctx, report)

	slog.Info("Build finished",
		logfields.BuildID(buildID),
		logfields.Outcome(string(report.Outcome)),
		slog.String("summary", report.Summary()))
	return report, runErr
}

// Clean removes stale artifacts without running a build.
func (s *Service) Clean(_ context.Context) (workspace.CleanResult, error) {
	root := s.cfg.Build.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return workspace.CleanResult{}, err
		}
		root = wd
	}
	return workspace.CleanArtifacts(root, s.cfg.Build.Artifacts)
}

// stampProvenance records git and source identity onto the report, best effort.
func (s *Service) stampProvenance(report *models.BuildReport) {
	root := s.cfg.Build.Root
	if root == "" {
		root = "."
	}
	report.GitCommit = vcs.HeadCommit(root)

	files := []string{s.cfg.App.EntryScript}
	for _, a := range s.cfg.App.Assets {
		files = append(files, a.Source)
	}
	report.SourceHash = vcs.SourceHash(root, files)
}

// finalize persists the report and fans out to optional sinks. Sink failures
// are logged, never escalated: the build result is already decided.
func (s *Service) finalize(ctx context.Context, report *models.BuildReport) {
	if dir := s.reportDir(); dir != "" {
		if err := report.Persist(dir); err != nil {
			slog.Warn("Failed to persist build report", logfields.Path(dir), logfields.Error(err))
		}
	}

	if s.store != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.store.Append(hctx, report); err != nil {
			slog.Warn("Failed to append build history", logfields.Error(err))
		}
	}

	if err := s.publisher.Publish(notify.EventFromReport(report)); err != nil {
		slog.Warn("Failed to publish build event", logfields.Error(err))
	}
}

func (s *Service) reportDir() string {
	dir := s.cfg.Build.ReportDir
	if dir == "" {
		return ""
	}
	root := s.cfg.Build.Root
	if root == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
