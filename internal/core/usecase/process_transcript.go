package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/formstate"
	"github.com/kirillkom/intake-assistant/internal/core/intake"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
)

const tracerName = "github.com/kirillkom/intake-assistant/internal/core/usecase"

type ProcessTranscriptUseCase struct {
	pipeline   *intake.Pipeline
	integrator *formstate.Integrator
	metrics    ports.PipelineMetrics
	logger     *slog.Logger
	tracer     trace.Tracer
	source     string
}

func NewProcessTranscriptUseCase(
	pipeline *intake.Pipeline,
	integrator *formstate.Integrator,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
) *ProcessTranscriptUseCase {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProcessTranscriptUseCase{
		pipeline:   pipeline,
		integrator: integrator,
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		source:     "sync",
	}
}

// WithSource returns a copy that labels metrics and logs with source.
func (uc *ProcessTranscriptUseCase) WithSource(source string) *ProcessTranscriptUseCase {
	clone := *uc
	clone.source = source
	return &clone
}

func (uc *ProcessTranscriptUseCase) Fields() []domain.FieldSchema {
	return uc.pipeline.Registry().Fields()
}

func (uc *ProcessTranscriptUseCase) StageFields(stage domain.Stage) []domain.FieldSchema {
	return uc.pipeline.Registry().StageFields(stage)
}

func (uc *ProcessTranscriptUseCase) ProcessTranscript(ctx context.Context, req ports.ProcessRequest) (*domain.ProcessResult, error) {
	ctx, span := uc.tracer.Start(ctx, "ProcessTranscript")
	defer span.End()
	started := time.Now()

	result, err := uc.process(ctx, req)
	duration := time.Since(started)

	var summary domain.RunSummary
	if result != nil {
		summary = result.Summary()
	}
	if uc.metrics != nil {
		uc.metrics.ObserveRun(uc.source, duration.Seconds(), summary, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		uc.logger.Warn("pipeline_run_failed", "source", uc.source, "error", err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("intake.turns", result.Turns),
		attribute.Int("intake.auto_apply", summary.AutoApply),
		attribute.Int("intake.suggest_only", summary.SuggestOnly),
	)
	uc.logger.Info(
		"pipeline_run",
		"source", uc.source,
		"turns", result.Turns,
		"auto_apply", summary.AutoApply,
		"suggest_only", summary.SuggestOnly,
		"ready_stages", summary.ReadyStages,
		"conflicts", summary.Conflicts,
		"duration_ms", duration.Milliseconds(),
	)
	return result, nil
}

func (uc *ProcessTranscriptUseCase) process(ctx context.Context, req ports.ProcessRequest) (*domain.ProcessResult, error) {
	doc := formstate.NewMemoryDocument()
	if req.FormState != nil {
		if err := doc.LoadSnapshot(req.FormState); err != nil {
			return nil, fmt.Errorf("load form state: %w", err)
		}
	}

	result, err := uc.run(ctx, req)
	if err != nil {
		return nil, err
	}

	uc.integrator.Apply(doc, result.Orchestration, result.Validation)
	result.FormState = doc.Snapshot()
	result.LiveGates = uc.integrator.LiveGates(doc)
	return &result, nil
}

func (uc *ProcessTranscriptUseCase) run(ctx context.Context, req ports.ProcessRequest) (domain.ProcessResult, error) {
	_, span := uc.tracer.Start(ctx, "intake.Pipeline")
	defer span.End()

	inputs := 0
	if req.Text != "" {
		inputs++
	}
	if len(req.Turns) > 0 {
		inputs++
	}
	if len(req.Dialogue) > 0 {
		inputs++
	}
	if inputs > 1 {
		return domain.ProcessResult{}, domain.WrapError(domain.ErrInvalidInput, "process transcript", errors.New("provide only one of text, turns or dialogue"))
	}

	switch {
	case len(req.Turns) > 0:
		return uc.pipeline.ProcessTurns(req.Turns)
	case len(req.Dialogue) > 0:
		return uc.pipeline.ProcessDialogue(req.Dialogue)
	default:
		return uc.pipeline.ProcessText(req.Text, req.DefaultSpeaker)
	}
}
