package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Source is a cited reference backing a research finding.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Finding is one researched topic with its summary and citations.
type Finding struct {
	Topic   string   `json:"topic"`
	Summary string   `json:"summary"`
	Sources []Source `json:"sources"`
}

// ResearchResult holds the findings of one research pass for a client. An
// empty Findings slice is a valid, degraded result.
type ResearchResult struct {
	ClientName  string    `json:"client_name"`
	Findings    []Finding `json:"findings"`
	ContextUsed string    `json:"context_used,omitempty"`
}

// Validate checks schema requirements, normalizes nil collections, and
// deduplicates sources by URL within each finding.
func (r *ResearchResult) Validate() error {
	if r.ClientName == "" {
		return eris.New("model: research client_name is required")
	}
	if r.Findings == nil {
		r.Findings = []Finding{}
	}
	for i := range r.Findings {
		r.Findings[i].Sources = dedupeSources(r.Findings[i].Sources)
	}
	return nil
}

// Empty reports whether the result carries no findings.
func (r *ResearchResult) Empty() bool {
	return len(r.Findings) == 0
}

// ParseResearchResult decodes and validates a persisted or generated result.
func ParseResearchResult(data []byte) (*ResearchResult, error) {
	var r ResearchResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "model: decode research result")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func dedupeSources(sources []Source) []Source {
	if sources == nil {
		return []Source{}
	}
	seen := make(map[string]bool, len(sources))
	out := sources[:0]
	for _, s := range sources {
		if s.URL != "" && seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	return out
}
