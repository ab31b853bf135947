package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/resilience"
	"github.com/sells-group/briefing-cli/pkg/anthropic"
)

const reportSystemText = `You are writing a client briefing for an advisory meeting. Write polished, factual markdown. Cite source URLs inline where findings provide them. Never invent facts beyond the supplied profile and findings.`

const reportPrompt = `Write a markdown briefing for the client below, using exactly these four sections:

## Summary of Findings
## Relevance to Expertise and Goals
## Recommendations
## Industry News

Client profile:
%s
Research findings (JSON):
%s
%s
Start the document with "# Client Briefing: %s". If there are no findings, say so plainly in the summary and keep the remaining sections focused on the profile.`

// ReportGenerator renders a profile and research findings into a briefing
// document.
type ReportGenerator struct {
	backend anthropic.Client
	cfg     config.AnthropicConfig
	policy  resilience.Policy
	now     func() time.Time
}

// NewReportGenerator creates a ReportGenerator.
func NewReportGenerator(backend anthropic.Client, cfg config.AnthropicConfig, policy resilience.Policy) *ReportGenerator {
	return &ReportGenerator{backend: backend, cfg: cfg, policy: policy, now: time.Now}
}

// Generate produces a report document from the profile and findings. The
// document is not persisted here; the caller owns storage.
func (g *ReportGenerator) Generate(ctx context.Context, profile *model.ClientProfile, research *model.ResearchResult) (*model.ReportDocument, error) {
	findingsJSON, err := json.MarshalIndent(research.Findings, "", "  ")
	if err != nil {
		return nil, newGenerationError("report", err)
	}

	contextBlock := ""
	if research.ContextUsed != "" {
		contextBlock = fmt.Sprintf("Context supplied for this run:\n%s\n", research.ContextUsed)
	}

	prompt := fmt.Sprintf(reportPrompt,
		formatProfileContext(profile),
		string(findingsJSON),
		contextBlock,
		profile.Name,
	)

	resp, err := resilience.Retry(ctx, g.policy, "report", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.backend.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     g.cfg.ReportModel,
			MaxTokens: 4096,
			System:    reportSystemText,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return nil, newGenerationError("report", err)
	}
	resp.Usage.LogCost(g.cfg.ReportModel, "report")

	markdown := strings.TrimSpace(resp.Text())
	if markdown == "" {
		return nil, newGenerationError("report", ErrEmptyDocument)
	}

	return &model.ReportDocument{
		ClientName:  profile.Name,
		GeneratedAt: g.now().UTC(),
		Markdown:    markdown,
	}, nil
}
