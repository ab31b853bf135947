package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/config"
	"github.com/sells-group/briefing-cli/internal/model"
	"github.com/sells-group/briefing-cli/internal/resilience"
	"github.com/sells-group/briefing-cli/pkg/anthropic"
)

const profileSystemText = `You are a research assistant building structured client profiles for a professional services firm. Return valid JSON only, matching the requested schema exactly. Use empty arrays for sections with no information. Never invent facts; omit what you cannot support.`

const profilePrompt = `Build a structured profile of the following client.

Client name: %s
%s
Return a single JSON object with this shape:
{
  "name": "<client name exactly as given>",
  "bio": "<2-4 sentence professional biography>",
  "expertise": ["<area of expertise>", ...],
  "current_goals": ["<stated or inferred professional goal>", ...],
  "company_news": [{"title": "<headline>", "url": "<link or empty string>"}, ...],
  "additional_info": {"<key>": "<string or list of strings>", ...}
}`

// ProfileBuilder constructs client profiles from a generative backend.
type ProfileBuilder struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
	policy resilience.Policy
}

// NewProfileBuilder creates a ProfileBuilder.
func NewProfileBuilder(client anthropic.Client, cfg config.AnthropicConfig, policy resilience.Policy) *ProfileBuilder {
	return &ProfileBuilder{client: client, cfg: cfg, policy: policy}
}

// Build generates a profile for the named client. Additional caller context
// is folded into the prompt when present. The returned profile always carries
// the canonical identity as its name, regardless of what the backend echoed.
func (b *ProfileBuilder) Build(ctx context.Context, identity model.Identity, extraContext string) (*model.ClientProfile, error) {
	contextBlock := ""
	if extraContext != "" {
		contextBlock = fmt.Sprintf("Additional context from the requester:\n%s\n", extraContext)
	}
	prompt := fmt.Sprintf(profilePrompt, string(identity), contextBlock)

	resp, err := resilience.Retry(ctx, b.policy, "profile build", func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return b.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     b.cfg.ProfileModel,
			MaxTokens: 2048,
			System:    profileSystemText,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return nil, newGenerationError("profile", err)
	}
	resp.Usage.LogCost(b.cfg.ProfileModel, "profile")

	var profile model.ClientProfile
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &profile); err != nil {
		return nil, newGenerationError("profile", eris.Wrap(err, "decode profile response"))
	}

	// The canonical identity wins over whatever the backend put in "name",
	// including a missing one.
	if profile.Name != "" && profile.Name != string(identity) {
		zap.L().Debug("profile name corrected to canonical identity",
			zap.String("backend_name", profile.Name),
			zap.String("identity", string(identity)),
		)
	}
	profile.Name = string(identity)

	if err := profile.Validate(); err != nil {
		return nil, newGenerationError("profile", eris.Wrap(err, "invalid profile response"))
	}

	return &profile, nil
}
