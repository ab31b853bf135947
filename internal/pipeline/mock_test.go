package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/resilience"
	"github.com/sells-group/briefing-cli/pkg/anthropic"
	"github.com/sells-group/briefing-cli/pkg/perplexity"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

// textResponse wraps text in a minimal backend response.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 20},
	}
}

// forModel matches a backend request by model name, which the tests use to
// tell the three stages apart.
func forModel(model string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == model
	})
}

func testAIConfig() config.AnthropicConfig {
	return config.AnthropicConfig{
		ProfileModel:  "model-profile",
		ResearchModel: "model-research",
		ReportModel:   "model-report",
	}
}

func noRetryPolicy() resilience.Policy {
	return resilience.Policy{MaxAttempts: 1, InitialBackoff: time.Millisecond}
}

const validProfileJSON = `{
	"name": "Sam Altman",
	"bio": "CEO of OpenAI.",
	"expertise": ["artificial intelligence"],
	"current_goals": ["scale AI infrastructure"],
	"company_news": [{"title": "OpenAI ships new model", "url": "https://example.com/news"}]
}`

const validResearchJSON = `{
	"client_name": "Sam Altman",
	"findings": [
		{
			"topic": "funding",
			"summary": "Raised a new round.",
			"sources": [{"title": "TechCrunch", "url": "https://example.com/tc"}]
		}
	]
}`

const emptyResearchJSON = `{"client_name": "Sam Altman", "findings": []}`

const validReportMarkdown = `# Client Briefing: Sam Altman

## Summary of Findings
Raised a new round.

## Relevance to Expertise and Goals
Relevant.

## Recommendations
Discuss.

## Industry News
None.`
