package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// RunRepository stores processing runs in a single SQLite file. It backs
// single-node deployments and the CLI where Postgres is not available.
type RunRepository struct {
	db *sql.DB
}

func Open(path string) (*RunRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	repo := &RunRepository{db: db}
	if err := repo.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return repo, nil
}

func (r *RunRepository) Close() error {
	return r.db.Close()
}

func (r *RunRepository) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS processing_runs (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			default_speaker TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			result TEXT,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_runs_status ON processing_runs(status)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *RunRepository) Create(ctx context.Context, run *domain.ProcessingRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO processing_runs (
	id, filename, mime_type, storage_path, default_speaker, status, error_message, created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?)
`,
		run.ID, run.Filename, run.MimeType, run.StoragePath, run.DefaultSpeaker,
		string(run.Status), run.Error, formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.ProcessingRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, default_speaker, status, result, error_message, created_at, updated_at
FROM processing_runs
WHERE id = ?
`, id)

	var run domain.ProcessingRun
	var result sql.NullString
	var status, createdAt, updatedAt string

	err := row.Scan(
		&run.ID, &run.Filename, &run.MimeType, &run.StoragePath, &run.DefaultSpeaker,
		&status, &result, &run.Error, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get run", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if result.Valid && result.String != "" {
		var decoded domain.ProcessResult
		if err := json.Unmarshal([]byte(result.String), &decoded); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		run.Result = &decoded
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	return &run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE processing_runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?
`, string(status), errMessage, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return requireAffected(res, "update run status", id)
}

func (r *RunRepository) SaveResult(ctx context.Context, id string, result domain.ProcessResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE processing_runs SET result = ?, updated_at = ? WHERE id = ?
`, string(raw), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("save run result: %w", err)
	}
	return requireAffected(res, "save run result", id)
}

func requireAffected(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRunNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
