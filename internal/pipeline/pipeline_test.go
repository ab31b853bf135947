package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/store"
)

type testEnv struct {
	pipeline *Pipeline
	backend  *mockBackend
	dataDir  string
	runLog   store.RunLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dataDir := t.TempDir()

	runLog, err := store.NewSQLiteRunLog(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runLog.Close() })
	require.NoError(t, runLog.Migrate(context.Background()))

	backend := &mockBackend{}
	cfg := testAIConfig()
	policy := noRetryPolicy()

	stores := Stores{
		Profiles: store.NewFileProfileStore(dataDir),
		Research: store.NewFileResearchStore(dataDir),
		Reports:  store.NewFileReportStore(dataDir),
		Runs:     runLog,
	}

	p := New(
		NewProfileBuilder(backend, cfg, policy),
		NewContentResearcher(backend, nil, cfg, config.PerplexityConfig{}, policy),
		NewReportGenerator(backend, cfg, policy),
		stores,
	)

	return &testEnv{pipeline: p, backend: backend, dataDir: dataDir, runLog: runLog}
}

func (e *testEnv) expectProfile() *mock.Call {
	return e.backend.On("CreateMessage", mock.Anything, forModel("model-profile")).
		Return(textResponse(validProfileJSON), nil)
}

func (e *testEnv) expectResearch(body string) *mock.Call {
	return e.backend.On("CreateMessage", mock.Anything, forModel("model-research")).
		Return(textResponse(body), nil)
}

func (e *testEnv) expectReport() *mock.Call {
	return e.backend.On("CreateMessage", mock.Anything, forModel("model-report")).
		Return(textResponse(validReportMarkdown), nil)
}

func TestPipelineRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.expectProfile().Once()
	env.expectResearch(validResearchJSON).Once()
	env.expectReport().Once()

	doc, err := env.pipeline.Run(ctx, "Sam Altman", Options{Context: "quarterly review"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Sam Altman", doc.ClientName)

	// Report file is on disk.
	data, err := os.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Client Briefing: Sam Altman")

	// Profile and research artifacts were persisted.
	_, err = os.Stat(filepath.Join(env.dataDir, "profiles", "sam_altman.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(env.dataDir, "research", "sam_altman.json"))
	require.NoError(t, err)

	// Ledger recorded a completed run with all three stages.
	runs, err := env.runLog.ListRuns(ctx, "Sam Altman", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, doc.Path, runs[0].ReportPath)
	require.Len(t, runs[0].Stages, 3)
	assert.Equal(t, "profile", runs[0].Stages[0].Name)
	assert.False(t, runs[0].Stages[0].FromCache)

	env.backend.AssertExpectations(t)
}

func TestPipelineRun_ReusesStoredProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.expectProfile().Once()
	env.expectResearch(validResearchJSON).Twice()
	env.expectReport().Twice()

	_, err := env.pipeline.Run(ctx, "Sam Altman", Options{})
	require.NoError(t, err)

	// Second run loads the profile instead of rebuilding it.
	_, err = env.pipeline.Run(ctx, "Sam Altman", Options{})
	require.NoError(t, err)

	runs, err := env.runLog.ListRuns(ctx, "Sam Altman", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.True(t, runs[0].Stages[0].FromCache)

	env.backend.AssertExpectations(t)
}

func TestPipelineRun_RefreshProfileRebuilds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.expectProfile().Twice()
	env.expectResearch(validResearchJSON).Twice()
	env.expectReport().Twice()

	_, err := env.pipeline.Run(ctx, "Sam Altman", Options{})
	require.NoError(t, err)

	_, err = env.pipeline.Run(ctx, "Sam Altman", Options{RefreshProfile: true})
	require.NoError(t, err)

	env.backend.AssertExpectations(t)
}

func TestPipelineRun_EmptyFindingsDegrades(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.expectProfile().Once()
	env.expectResearch(emptyResearchJSON).Once()
	env.expectReport().Once()

	doc, err := env.pipeline.Run(ctx, "Sam Altman", Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)

	// The degraded empty result was still persisted.
	data, err := os.ReadFile(filepath.Join(env.dataDir, "research", "sam_altman.json"))
	require.NoError(t, err)
	result, err := model.ParseResearchResult(data)
	require.NoError(t, err)
	assert.True(t, result.Empty())

	runs, err := env.runLog.ListRuns(ctx, "Sam Altman", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, "degraded", runs[0].Stages[1].Status)
}

func TestPipelineRun_ResearchFailureLeavesNoReport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.expectProfile().Once()
	env.backend.On("CreateMessage", mock.Anything, forModel("model-research")).
		Return(nil, errors.New("invalid api key")).Once()

	_, err := env.pipeline.Run(ctx, "Sam Altman", Options{})
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "research", genErr.Stage)

	// The profile from the successful first stage survives; no research or
	// report artifacts were written.
	_, err = os.Stat(filepath.Join(env.dataDir, "profiles", "sam_altman.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(env.dataDir, "research", "sam_altman.json"))
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Join(env.dataDir, "reports"))
	if err == nil {
		assert.Empty(t, entries)
	}

	runs, lerr := env.runLog.ListRuns(ctx, "Sam Altman", 10)
	require.NoError(t, lerr)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "research stage failed")
}

func TestPipelineRun_CorruptProfileIsFatal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, os.MkdirAll(filepath.Join(env.dataDir, "profiles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.dataDir, "profiles", "sam_altman.json"), []byte("{broken"), 0o644))

	_, err := env.pipeline.Run(ctx, "Sam Altman", Options{})
	require.Error(t, err)

	var corrupt *store.CorruptDataError
	require.True(t, errors.As(err, &corrupt))
	assert.Equal(t, "profile", corrupt.Artifact)

	// No backend calls were made.
	env.backend.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestPipelineRun_EmptyClientName(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.pipeline.Run(context.Background(), "   ", Options{})
	require.Error(t, err)
}

func TestPipelineRun_NilRunLog(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.stores.Runs = nil
	env.expectProfile().Once()
	env.expectResearch(validResearchJSON).Once()
	env.expectReport().Once()

	doc, err := env.pipeline.Run(context.Background(), "Sam Altman", Options{})
	require.NoError(t, err)
	assert.NotNil(t, doc)
}
