package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/pipeline"
	"github.com/sells-group/briefing-cli/internal/store"
	anthropicpkg "github.com/sells-group/briefing-cli/pkg/anthropic"
	"github.com/sells-group/briefing-cli/pkg/perplexity"
)

// pipelineEnv holds the initialized stores, clients, and pipeline shared by
// the run/profile/research/serve commands.
type pipelineEnv struct {
	Stores     pipeline.Stores
	Pipeline   *pipeline.Pipeline
	Profiler   *pipeline.ProfileBuilder
	Researcher *pipeline.ContentResearcher
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Stores.Runs != nil {
		_ = pe.Stores.Runs.Close()
	}
}

// initRunLog opens the configured run ledger backend.
func initRunLog(ctx context.Context) (store.RunLog, error) {
	switch cfg.RunLog.Driver {
	case "sqlite":
		dsn := cfg.RunLog.DSN
		if dsn == "" {
			dsn = "briefing.db"
		}
		return store.NewSQLiteRunLog(dsn)
	case "postgres":
		return store.NewPostgresRunLog(ctx, cfg.RunLog.DSN)
	default:
		return nil, eris.Errorf("unsupported runlog driver: %s", cfg.RunLog.Driver)
	}
}

// initPipeline sets up stores, API clients, and the pipeline. Callers should
// defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (BRIEFING_ANTHROPIC_KEY)")
	}

	runLog, err := initRunLog(ctx)
	if err != nil {
		return nil, err
	}
	if err := runLog.Migrate(ctx); err != nil {
		_ = runLog.Close()
		return nil, eris.Wrap(err, "migrate run ledger")
	}

	stores := pipeline.Stores{
		Profiles: store.NewFileProfileStore(cfg.Store.Dir),
		Research: store.NewFileResearchStore(cfg.Store.Dir),
		Reports:  store.NewFileReportStore(cfg.Store.Dir),
		Runs:     runLog,
	}

	backend := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithRateLimit(cfg.Anthropic.RateLimitRPS))

	var search perplexity.Client
	if cfg.Perplexity.Key != "" {
		search = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	} else {
		zap.L().Warn("BRIEFING_PERPLEXITY_KEY not set, research runs without web search")
	}

	policy := cfg.Retry.Policy()
	profiler := pipeline.NewProfileBuilder(backend, cfg.Anthropic, policy)
	researcher := pipeline.NewContentResearcher(backend, search, cfg.Anthropic, cfg.Perplexity, policy)
	reporter := pipeline.NewReportGenerator(backend, cfg.Anthropic, policy)
	p := pipeline.New(profiler, researcher, reporter, stores)

	return &pipelineEnv{
		Stores:     stores,
		Pipeline:   p,
		Profiler:   profiler,
		Researcher: researcher,
	}, nil
}
