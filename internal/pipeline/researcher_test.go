package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/pkg/perplexity"
)

func testProfile() *model.ClientProfile {
	return &model.ClientProfile{
		Name:         "Sam Altman",
		Bio:          "CEO of OpenAI.",
		Expertise:    []string{"artificial intelligence"},
		CurrentGoals: []string{"scale AI infrastructure"},
	}
}

func TestContentResearcher_Research(t *testing.T) {
	backend := &mockBackend{}
	backend.On("CreateMessage", mock.Anything, forModel("model-research")).
		Return(textResponse(validResearchJSON), nil).Once()

	search := &mockSearch{}
	search.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, "Sam Altman")
	})).Return(&perplexity.ChatCompletionResponse{
		Choices:   []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: "Recent funding news."}}},
		Citations: []string{"https://example.com/tc"},
	}, nil).Once()

	r := NewContentResearcher(backend, search, testAIConfig(), config.PerplexityConfig{Model: "sonar-pro"}, noRetryPolicy())

	result, err := r.Research(context.Background(), testProfile(), "quarterly review")
	require.NoError(t, err)
	assert.Equal(t, "Sam Altman", result.ClientName)
	assert.Equal(t, "quarterly review", result.ContextUsed)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "funding", result.Findings[0].Topic)
	backend.AssertExpectations(t)
	search.AssertExpectations(t)
}

func TestContentResearcher_Research_NoSearchClient(t *testing.T) {
	backend := &mockBackend{}
	backend.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(validResearchJSON), nil).Once()

	r := NewContentResearcher(backend, nil, testAIConfig(), config.PerplexityConfig{}, noRetryPolicy())

	result, err := r.Research(context.Background(), testProfile(), "")
	require.NoError(t, err)
	assert.False(t, result.Empty())
}

func TestContentResearcher_Research_SearchFailureDegrades(t *testing.T) {
	backend := &mockBackend{}
	backend.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(validResearchJSON), nil).Once()

	search := &mockSearch{}
	search.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, errors.New("perplexity: unexpected status 500")).Once()

	r := NewContentResearcher(backend, search, testAIConfig(), config.PerplexityConfig{}, noRetryPolicy())

	result, err := r.Research(context.Background(), testProfile(), "")
	require.NoError(t, err)
	assert.False(t, result.Empty())
	search.AssertExpectations(t)
}

func TestContentResearcher_Research_EmptyFindings(t *testing.T) {
	backend := &mockBackend{}
	backend.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(emptyResearchJSON), nil).Once()

	r := NewContentResearcher(backend, nil, testAIConfig(), config.PerplexityConfig{}, noRetryPolicy())

	result, err := r.Research(context.Background(), testProfile(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyResult)
	require.NotNil(t, result)
	assert.True(t, result.Empty())
	assert.Equal(t, "Sam Altman", result.ClientName)
}

func TestContentResearcher_Research_ForcesClientName(t *testing.T) {
	backend := &mockBackend{}
	backend.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"client_name": "Someone Else", "findings": [{"topic": "x", "summary": "y", "sources": []}]}`), nil).Once()

	r := NewContentResearcher(backend, nil, testAIConfig(), config.PerplexityConfig{}, noRetryPolicy())

	result, err := r.Research(context.Background(), testProfile(), "")
	require.NoError(t, err)
	assert.Equal(t, "Sam Altman", result.ClientName)
}

func TestContentResearcher_Research_MissingClientNameUsesProfile(t *testing.T) {
	backend := &mockBackend{}
	backend.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"findings": [{"topic": "x", "summary": "y", "sources": []}]}`), nil).Once()

	r := NewContentResearcher(backend, nil, testAIConfig(), config.PerplexityConfig{}, noRetryPolicy())

	result, err := r.Research(context.Background(), testProfile(), "")
	require.NoError(t, err)
	assert.Equal(t, "Sam Altman", result.ClientName)
	require.Len(t, result.Findings, 1)
}

func TestContentResearcher_Research_BackendError(t *testing.T) {
	backend := &mockBackend{}
	backend.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid api key")).Once()

	r := NewContentResearcher(backend, nil, testAIConfig(), config.PerplexityConfig{}, noRetryPolicy())

	_, err := r.Research(context.Background(), testProfile(), "")
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "research", genErr.Stage)
}
