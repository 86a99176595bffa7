package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
)

type RunQueryUseCase struct {
	repo     ports.RunRepository
	exporter ports.ReportExporter
}

func NewRunQueryUseCase(repo ports.RunRepository, exporter ports.ReportExporter) *RunQueryUseCase {
	return &RunQueryUseCase{repo: repo, exporter: exporter}
}

func (uc *RunQueryUseCase) GetByID(ctx context.Context, id string) (*domain.ProcessingRun, error) {
	return uc.repo.GetByID(ctx, id)
}

// ExportReport writes the review workbook of a completed run.
func (uc *RunQueryUseCase) ExportReport(ctx context.Context, id string, w io.Writer) error {
	run, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if run.Status != domain.RunCompleted || run.Result == nil {
		return domain.WrapError(domain.ErrRunNotComplete, "export report", fmt.Errorf("run %s is %s", id, run.Status))
	}
	if err := uc.exporter.Export(ctx, run, w); err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	return nil
}
