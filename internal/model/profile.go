package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// NewsItem is a single company news headline attached to a profile.
type NewsItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ClientProfile is the structured profile of a client, built once and reused
// across runs unless a refresh is requested.
type ClientProfile struct {
	Name           string         `json:"name"`
	Bio            string         `json:"bio"`
	Expertise      []string       `json:"expertise"`
	CurrentGoals   []string       `json:"current_goals"`
	CompanyNews    []NewsItem     `json:"company_news"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// Validate checks schema requirements and normalizes nil collections to
// empty ones so persisted JSON always carries the full shape.
func (p *ClientProfile) Validate() error {
	if p.Name == "" {
		return eris.New("model: profile name is required")
	}
	if p.Expertise == nil {
		p.Expertise = []string{}
	}
	if p.CurrentGoals == nil {
		p.CurrentGoals = []string{}
	}
	if p.CompanyNews == nil {
		p.CompanyNews = []NewsItem{}
	}
	for key, val := range p.AdditionalInfo {
		if !isStringOrStringList(val) {
			return eris.Errorf("model: additional_info[%q] must be a string or list of strings", key)
		}
	}
	return nil
}

// ParseClientProfile decodes and validates a persisted or generated profile.
func ParseClientProfile(data []byte) (*ClientProfile, error) {
	var p ClientProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "model: decode profile")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func isStringOrStringList(v any) bool {
	switch val := v.(type) {
	case string:
		return true
	case []string:
		return true
	case []any:
		for _, item := range val {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
