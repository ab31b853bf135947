package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/briefing-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the run ledger; pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresRunLog implements RunLog using pgxpool.
type PostgresRunLog struct {
	pool    Pool
	closeFn func()
}

// NewPostgresRunLog creates a PostgresRunLog with a connection pool.
func NewPostgresRunLog(ctx context.Context, connString string) (*PostgresRunLog, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresRunLog{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	client      TEXT NOT NULL,
	context     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	report_path TEXT,
	stages      JSONB,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_client ON runs(client);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *PostgresRunLog) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresRunLog) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresRunLog) CreateRun(ctx context.Context, client, runContext string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, client, context, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, client, runContext, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Client:    client,
		Context:   runContext,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresRunLog) CompleteRun(ctx context.Context, runID string, status model.RunStatus, reportPath string, stages []model.StageResult, runErr string) error {
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stages")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, report_path = $2, stages = $3, error = $4, updated_at = $5 WHERE id = $6`,
		string(status), reportPath, string(stagesJSON), runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresRunLog) ListRuns(ctx context.Context, client string, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, client, context, status, report_path, stages, error, created_at, updated_at FROM runs`
	var args []any
	if client != "" {
		query += ` WHERE client = $1 ORDER BY created_at DESC LIMIT $2`
		args = []any{client, limit}
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = []any{limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var reportPath, runErr *string
		var stagesJSON []byte
		if err := rows.Scan(&r.ID, &r.Client, &r.Context, &status, &reportPath, &stagesJSON, &runErr, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if reportPath != nil {
			r.ReportPath = *reportPath
		}
		if runErr != nil {
			r.Error = *runErr
		}
		if len(stagesJSON) > 0 {
			if err := json.Unmarshal(stagesJSON, &r.Stages); err != nil {
				return nil, eris.Wrapf(err, "postgres: decode stages for run %s", r.ID)
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
