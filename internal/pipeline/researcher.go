package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/resilience"
	"github.com/sells-group/briefing-cli/pkg/anthropic"
	"github.com/sells-group/briefing-cli/pkg/perplexity"
)

const researchSystemText = `You are a research analyst preparing findings about a client for an advisory meeting. Return valid JSON only, matching the requested schema exactly. Every finding must cite at least one source when web evidence is available. Return an empty findings array rather than inventing results.`

const researchPrompt = `Research the following client and structure your findings.

Client profile:
%s
%s%s
Return a single JSON object with this shape:
{
  "client_name": "%s",
  "findings": [
    {
      "topic": "<what this finding is about>",
      "summary": "<2-4 sentence summary>",
      "sources": [{"title": "<source title>", "url": "<source url>"}, ...]
    },
    ...
  ]
}

Focus on recent developments relevant to the client's expertise, goals, and company: industry news, market shifts, notable announcements.`

const searchPrompt = `Find recent news and developments relevant to this person for an advisory meeting. Cover their industry, their company, and their stated goals.

Name: %s
Expertise: %s
Current goals: %s%s

Summarize what you find with source URLs.`

// ContentResearcher gathers and structures research findings for a client.
// The perplexity client supplies web evidence and may be nil, in which case
// research runs on profile context alone.
type ContentResearcher struct {
	backend anthropic.Client
	search  perplexity.Client
	cfg     config.AnthropicConfig
	pxCfg   config.PerplexityConfig
	policy  resilience.Policy
}

// NewContentResearcher creates a ContentResearcher.
func NewContentResearcher(backend anthropic.Client, search perplexity.Client, cfg config.AnthropicConfig, pxCfg config.PerplexityConfig, policy resilience.Policy) *ContentResearcher {
	return &ContentResearcher{backend: backend, search: search, cfg: cfg, pxCfg: pxCfg, policy: policy}
}

// Research produces fresh findings for the profiled client. When the backend
// returns zero findings, the empty result is returned together with
// ErrEmptyResult so the caller can degrade instead of failing.
func (r *ContentResearcher) Research(ctx context.Context, profile *model.ClientProfile, extraContext string) (*model.ResearchResult, error) {
	evidence := r.gatherEvidence(ctx, profile, extraContext)

	profileJSON := formatProfileContext(profile)
	evidenceBlock := ""
	if evidence != "" {
		evidenceBlock = fmt.Sprintf("\nWeb search evidence:\n%s\n", evidence)
	}
	contextBlock := ""
	if extraContext != "" {
		contextBlock = fmt.Sprintf("\nAdditional context from the requester:\n%s\n", extraContext)
	}

	prompt := fmt.Sprintf(researchPrompt, profileJSON, evidenceBlock, contextBlock, profile.Name)

	resp, err := resilience.Retry(ctx, r.policy, "research", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return r.backend.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     r.cfg.ResearchModel,
			MaxTokens: 4096,
			System:    researchSystemText,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return nil, newGenerationError("research", err)
	}
	resp.Usage.LogCost(r.cfg.ResearchModel, "research")

	var result model.ResearchResult
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		return nil, newGenerationError("research", eris.Wrap(err, "decode research response"))
	}

	// The canonical name wins before validation so a backend response that
	// omits client_name is repaired, not rejected.
	result.ClientName = profile.Name
	result.ContextUsed = extraContext

	if err := result.Validate(); err != nil {
		return nil, newGenerationError("research", eris.Wrap(err, "invalid research response"))
	}

	if result.Empty() {
		zap.L().Warn("research produced no findings", zap.String("client", profile.Name))
		return &result, ErrEmptyResult
	}
	return &result, nil
}

// gatherEvidence runs a web search pass via Perplexity. Search failures
// degrade to profile-only research rather than failing the stage.
func (r *ContentResearcher) gatherEvidence(ctx context.Context, profile *model.ClientProfile, extraContext string) string {
	if r.search == nil {
		return ""
	}

	contextLine := ""
	if extraContext != "" {
		contextLine = "\nContext: " + extraContext
	}
	query := fmt.Sprintf(searchPrompt,
		profile.Name,
		strings.Join(profile.Expertise, ", "),
		strings.Join(profile.CurrentGoals, ", "),
		contextLine,
	)

	resp, err := r.search.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: r.pxCfg.Model,
		Messages: []perplexity.Message{
			{Role: "user", Content: query},
		},
		RecencyFilter:   "month",
		Returncitations: true,
	})
	if err != nil {
		zap.L().Warn("web search failed, researching on profile context alone",
			zap.String("client", profile.Name),
			zap.Error(err),
		)
		return ""
	}

	evidence := resp.Text()
	if len(resp.Citations) > 0 {
		evidence += "\n\nCitations:\n"
		for _, c := range resp.Citations {
			evidence += "- " + c + "\n"
		}
	}
	return evidence
}

func formatProfileContext(p *model.ClientProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	if p.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", p.Bio)
	}
	if len(p.Expertise) > 0 {
		fmt.Fprintf(&b, "Expertise: %s\n", strings.Join(p.Expertise, ", "))
	}
	if len(p.CurrentGoals) > 0 {
		fmt.Fprintf(&b, "Current goals: %s\n", strings.Join(p.CurrentGoals, ", "))
	}
	for _, item := range p.CompanyNews {
		fmt.Fprintf(&b, "Company news: %s (%s)\n", item.Title, item.URL)
	}
	for key, val := range p.AdditionalInfo {
		fmt.Fprintf(&b, "%s: %v\n", key, val)
	}
	return b.String()
}
