// Package pipeline implements the briefing pipeline: profile building,
// content research, and report generation, orchestrated with load-or-generate
// caching keyed by client identity.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/store"
)

// Stores bundles the persistence backends the pipeline writes to. RunLog may
// be nil; ledger recording is best-effort either way.
type Stores struct {
	Profiles store.ProfileStore
	Research store.ResearchStore
	Reports  store.ReportStore
	Runs     store.RunLog
}

// Options controls a single pipeline run.
type Options struct {
	// Context is free-form requester context folded into prompts.
	Context string

	// RefreshProfile forces a rebuild even when a stored profile exists.
	RefreshProfile bool
}

// Pipeline orchestrates the three stages end to end.
type Pipeline struct {
	profiler   *ProfileBuilder
	researcher *ContentResearcher
	reporter   *ReportGenerator
	stores     Stores
}

// New creates a Pipeline.
func New(profiler *ProfileBuilder, researcher *ContentResearcher, reporter *ReportGenerator, stores Stores) *Pipeline {
	return &Pipeline{
		profiler:   profiler,
		researcher: researcher,
		reporter:   reporter,
		stores:     stores,
	}
}

// Run executes the full pipeline for a client name. The profile stage loads
// a stored profile when one exists; research always runs fresh; the report
// is saved under a new timestamped path. There is no rollback: artifacts
// persisted by earlier stages survive later failures.
func (p *Pipeline) Run(ctx context.Context, clientName string, opts Options) (*model.ReportDocument, error) {
	id, err := model.NormalizeIdentity(clientName)
	if err != nil {
		return nil, err
	}

	logger := zap.L().With(zap.String("client", id.String()))
	logger.Info("pipeline run starting", zap.Bool("refresh_profile", opts.RefreshProfile))

	runID := p.startRun(ctx, id, opts.Context)

	doc, stages, err := p.run(ctx, id, opts, logger)
	p.finishRun(ctx, runID, doc, stages, err)
	if err != nil {
		return nil, err
	}

	logger.Info("pipeline run complete", zap.String("report", doc.Path))
	return doc, nil
}

func (p *Pipeline) run(ctx context.Context, id model.Identity, opts Options, logger *zap.Logger) (*model.ReportDocument, []model.StageResult, error) {
	var stages []model.StageResult

	profile, stage, err := p.profileStage(ctx, id, opts)
	stages = append(stages, stage)
	if err != nil {
		return nil, stages, err
	}

	research, stage, err := p.researchStage(ctx, profile, opts.Context, logger)
	stages = append(stages, stage)
	if err != nil {
		return nil, stages, err
	}

	doc, stage, err := p.reportStage(ctx, profile, research)
	stages = append(stages, stage)
	if err != nil {
		return nil, stages, err
	}

	return doc, stages, nil
}

// profileStage loads the stored profile when present, otherwise builds and
// persists a fresh one. Corrupt stored data is fatal rather than silently
// regenerated, so the operator can inspect the artifact.
func (p *Pipeline) profileStage(ctx context.Context, id model.Identity, opts Options) (*model.ClientProfile, model.StageResult, error) {
	start := time.Now()
	stage := model.StageResult{Name: "profile", Status: "complete"}

	if !opts.RefreshProfile {
		exists, err := p.stores.Profiles.Exists(ctx, id)
		if err != nil {
			return nil, failStage(&stage, start, err), err
		}
		if exists {
			profile, err := p.stores.Profiles.Load(ctx, id)
			if err != nil {
				return nil, failStage(&stage, start, err), err
			}
			stage.FromCache = true
			stage.Duration = time.Since(start)
			return profile, stage, nil
		}
	}

	profile, err := p.profiler.Build(ctx, id, opts.Context)
	if err != nil {
		return nil, failStage(&stage, start, err), err
	}
	if err := p.stores.Profiles.Save(ctx, profile); err != nil {
		return nil, failStage(&stage, start, err), err
	}

	stage.Duration = time.Since(start)
	return profile, stage, nil
}

// researchStage always runs fresh research. A degraded empty result is still
// persisted and the run continues to the report stage.
func (p *Pipeline) researchStage(ctx context.Context, profile *model.ClientProfile, runContext string, logger *zap.Logger) (*model.ResearchResult, model.StageResult, error) {
	start := time.Now()
	stage := model.StageResult{Name: "research", Status: "complete"}

	research, err := p.researcher.Research(ctx, profile, runContext)
	if err != nil && !errors.Is(err, ErrEmptyResult) {
		return nil, failStage(&stage, start, err), err
	}
	if errors.Is(err, ErrEmptyResult) {
		stage.Status = "degraded"
		logger.Warn("continuing with empty research findings")
	}

	if err := p.stores.Research.Save(ctx, research); err != nil {
		return nil, failStage(&stage, start, err), err
	}

	stage.Duration = time.Since(start)
	return research, stage, nil
}

func (p *Pipeline) reportStage(ctx context.Context, profile *model.ClientProfile, research *model.ResearchResult) (*model.ReportDocument, model.StageResult, error) {
	start := time.Now()
	stage := model.StageResult{Name: "report", Status: "complete"}

	doc, err := p.reporter.Generate(ctx, profile, research)
	if err != nil {
		return nil, failStage(&stage, start, err), err
	}
	if _, err := p.stores.Reports.Save(ctx, doc); err != nil {
		return nil, failStage(&stage, start, err), err
	}

	stage.Duration = time.Since(start)
	return doc, stage, nil
}

// startRun opens a ledger record. Ledger failures never fail the pipeline.
func (p *Pipeline) startRun(ctx context.Context, id model.Identity, runContext string) string {
	if p.stores.Runs == nil {
		return ""
	}
	run, err := p.stores.Runs.CreateRun(ctx, id.String(), runContext)
	if err != nil {
		zap.L().Warn("run ledger create failed", zap.Error(err))
		return ""
	}
	return run.ID
}

func (p *Pipeline) finishRun(ctx context.Context, runID string, doc *model.ReportDocument, stages []model.StageResult, runErr error) {
	if p.stores.Runs == nil || runID == "" {
		return
	}

	status := model.RunStatusComplete
	reportPath := ""
	errText := ""
	if runErr != nil {
		status = model.RunStatusFailed
		errText = runErr.Error()
	} else if doc != nil {
		reportPath = doc.Path
	}

	if err := p.stores.Runs.CompleteRun(ctx, runID, status, reportPath, stages, errText); err != nil {
		zap.L().Warn("run ledger complete failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func failStage(stage *model.StageResult, start time.Time, err error) model.StageResult {
	stage.Status = "failed"
	stage.Duration = time.Since(start)
	stage.Error = err.Error()
	return *stage
}
