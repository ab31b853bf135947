// Package model defines the pipeline's domain types: client identities,
// profiles, research results, report documents, and run records.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// Identity is the canonical form of a client name: whitespace-trimmed and
// Unicode NFC-normalized. All storage keys and prompt inputs derive from it,
// so "José Smith" in NFC and NFD resolve to the same artifacts.
type Identity string

// NormalizeIdentity canonicalizes a raw client name. An empty or
// whitespace-only name is rejected.
func NormalizeIdentity(name string) (Identity, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", eris.New("model: client name is empty")
	}
	return Identity(norm.NFC.String(trimmed)), nil
}

func (id Identity) String() string {
	return string(id)
}

// Slug returns the filesystem-safe form of the identity: lowercased with
// spaces replaced by underscores.
func (id Identity) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(id)), " ", "_")
}
