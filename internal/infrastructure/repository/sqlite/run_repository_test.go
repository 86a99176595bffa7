package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

func newTestRepository(t *testing.T) *RunRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRunLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

	run := &domain.ProcessingRun{
		ID:             "run-1",
		Filename:       "intake.txt",
		MimeType:       "text/plain",
		StoragePath:    "run-1_intake.txt",
		DefaultSpeaker: "parent",
		Status:         domain.RunQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.RunQueued || got.Result != nil || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected queued run %+v", got)
	}

	if err := repo.SaveResult(ctx, "run-1", domain.ProcessResult{Turns: 4}); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, "run-1", domain.RunCompleted, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, err = repo.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.RunCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Result == nil || got.Result.Turns != 4 {
		t.Fatalf("expected stored result, got %+v", got.Result)
	}
	if got.DefaultSpeaker != "parent" {
		t.Fatalf("expected speaker parent, got %q", got.DefaultSpeaker)
	}
}

func TestMissingRunIsNotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("GetByID: expected ErrRunNotFound, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "missing", domain.RunFailed, "boom"); !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("UpdateStatus: expected ErrRunNotFound, got %v", err)
	}
	if err := repo.SaveResult(ctx, "missing", domain.ProcessResult{}); !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("SaveResult: expected ErrRunNotFound, got %v", err)
	}
}
