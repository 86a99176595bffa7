package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
)

type SubmitTranscriptUseCase struct {
	repo    ports.RunRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewSubmitTranscriptUseCase(
	repo ports.RunRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitTranscriptUseCase {
	return &SubmitTranscriptUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Submit archives the transcript, records a queued run and hands the run id
// to the worker queue.
func (uc *SubmitTranscriptUseCase) Submit(
	ctx context.Context,
	filename, mimeType, defaultSpeaker string,
	body io.Reader,
) (*domain.ProcessingRun, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save transcript to storage: %w", err)
	}

	run := &domain.ProcessingRun{
		ID:             id,
		Filename:       filename,
		MimeType:       mimeType,
		StoragePath:    storageKey,
		DefaultSpeaker: defaultSpeaker,
		Status:         domain.RunQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run record: %w", err)
	}

	if err := uc.queue.PublishTranscriptSubmitted(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("publish submission event: %w", err)
	}

	return run, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "transcript.txt"
	}
	return base
}
