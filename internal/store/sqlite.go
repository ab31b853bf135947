package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/briefing-cli/internal/model"
)

// SQLiteRunLog implements RunLog using modernc.org/sqlite.
type SQLiteRunLog struct {
	db *sql.DB
}

// NewSQLiteRunLog opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLiteRunLog(dsn string) (*SQLiteRunLog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteRunLog{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	client      TEXT NOT NULL,
	context     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	report_path TEXT,
	stages      TEXT,
	error       TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_client ON runs(client);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteRunLog) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteRunLog) Close() error {
	return s.db.Close()
}

func (s *SQLiteRunLog) CreateRun(ctx context.Context, client, runContext string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, client, context, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, client, runContext, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteRunLog) CompleteRun(ctx context.Context, runID string, status model.RunStatus, reportPath string, stages []model.StageResult, runErr string) error {
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stages")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, report_path = ?, stages = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), reportPath, string(stagesJSON), runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteRunLog) ListRuns(ctx context.Context, client string, limit int) ([]model.Run, error) {
	query := `SELECT id, client, context, status, report_path, stages, error, created_at, updated_at FROM runs`
	var args []any
	if client != "" {
		query += ` WHERE client = ?`
		args = append(args, client)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var reportPath, stagesJSON, runErr sql.NullString
		if err := rows.Scan(&r.ID, &r.Client, &r.Context, &status, &reportPath, &stagesJSON, &runErr, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		r.ReportPath = reportPath.String
		r.Error = runErr.String
		if stagesJSON.Valid && stagesJSON.String != "" {
			if err := json.Unmarshal([]byte(stagesJSON.String), &r.Stages); err != nil {
				return nil, eris.Wrapf(err, "sqlite: decode stages for run %s", r.ID)
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}
