package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
)

// ProcessRunUseCase processes a queued run end to end: load the archived
// transcript, run the pipeline, persist the result.
type ProcessRunUseCase struct {
	repo      ports.RunRepository
	loader    ports.TranscriptLoader
	processor ports.TranscriptProcessor
}

func NewProcessRunUseCase(
	repo ports.RunRepository,
	loader ports.TranscriptLoader,
	processor ports.TranscriptProcessor,
) *ProcessRunUseCase {
	return &ProcessRunUseCase{
		repo:      repo,
		loader:    loader,
		processor: processor,
	}
}

func (uc *ProcessRunUseCase) ProcessByID(ctx context.Context, runID string) error {
	if err := uc.markStatus(ctx, runID, domain.RunProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, runID)
	if err != nil {
		if failErr := uc.markFailed(ctx, runID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.persistResult(ctx, runID, result); err != nil {
		if failErr := uc.markFailed(ctx, runID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, runID, domain.RunCompleted, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}

	return nil
}

func (uc *ProcessRunUseCase) processPipeline(ctx context.Context, runID string) (*domain.ProcessResult, error) {
	run, err := uc.repo.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("fetch run by id: %w", err)
	}

	text, err := uc.loader.Load(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	result, err := uc.processor.ProcessTranscript(ctx, ports.ProcessRequest{
		Text:           text,
		DefaultSpeaker: run.DefaultSpeaker,
	})
	if err != nil {
		return nil, fmt.Errorf("process transcript: %w", err)
	}
	return result, nil
}

func (uc *ProcessRunUseCase) persistResult(ctx context.Context, runID string, result *domain.ProcessResult) error {
	if err := uc.repo.SaveResult(ctx, runID, *result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (uc *ProcessRunUseCase) markStatus(ctx context.Context, runID string, status domain.RunStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, runID, status, errMessage)
}

func (uc *ProcessRunUseCase) markFailed(ctx context.Context, runID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, runID, domain.RunFailed, processErr.Error())
}
