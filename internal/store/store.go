// Package store persists pipeline artifacts: profiles and research results
// as JSON files keyed by client identity, reports as timestamped markdown
// files, and a run ledger in SQLite or Postgres.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/briefing-cli/internal/model"
)

// ErrNotFound is returned by Load when no artifact is persisted for the
// requested identity. Callers treat it as the load-or-build trigger, never
// as a failure.
var ErrNotFound = errors.New("store: artifact not found")

// CorruptDataError reports a persisted artifact that cannot be parsed into
// its schema. It carries the identity and artifact type so an operator can
// locate and inspect or delete the bad file.
type CorruptDataError struct {
	Identity string
	Artifact string
	Err      error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("store: corrupt %s data for %q: %v", e.Artifact, e.Identity, e.Err)
}

func (e *CorruptDataError) Unwrap() error {
	return e.Err
}

// ProfileStore maps a client identity to a persisted ClientProfile.
// Save overwrites any prior record for the same identity.
type ProfileStore interface {
	Exists(ctx context.Context, id model.Identity) (bool, error)
	Load(ctx context.Context, id model.Identity) (*model.ClientProfile, error)
	Save(ctx context.Context, profile *model.ClientProfile) error
}

// ResearchStore maps a client identity to a persisted ResearchResult.
type ResearchStore interface {
	Exists(ctx context.Context, id model.Identity) (bool, error)
	Load(ctx context.Context, id model.Identity) (*model.ResearchResult, error)
	Save(ctx context.Context, result *model.ResearchResult) error
}

// ReportStore persists report documents. Each save produces a new
// timestamp-qualified file; existing reports are never overwritten.
type ReportStore interface {
	Save(ctx context.Context, doc *model.ReportDocument) (string, error)
	List(ctx context.Context, id model.Identity) ([]string, error)
}

// RunLog records orchestrator invocations for history and debugging. Ledger
// failures are never fatal to a pipeline run.
type RunLog interface {
	CreateRun(ctx context.Context, client, runContext string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, reportPath string, stages []model.StageResult, runErr string) error
	ListRuns(ctx context.Context, client string, limit int) ([]model.Run, error)
	Migrate(ctx context.Context) error
	Close() error
}
