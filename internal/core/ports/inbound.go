package ports

import (
	"context"
	"io"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// ProcessRequest carries either raw text or pre-segmented turns, never both.
type ProcessRequest struct {
	Text           string                  `json:"text,omitempty"`
	Turns          []domain.TranscriptTurn `json:"turns,omitempty"`
	Dialogue       []domain.DialogueLine   `json:"dialogue,omitempty"`
	DefaultSpeaker string                  `json:"default_speaker,omitempty"`
	FormState      map[string]any          `json:"form_state,omitempty"`
}

// TranscriptProcessor is the inbound contract for synchronous transcript processing.
type TranscriptProcessor interface {
	ProcessTranscript(ctx context.Context, req ProcessRequest) (*domain.ProcessResult, error)
}

// RunSubmitter is the inbound contract for asynchronous transcript submission.
type RunSubmitter interface {
	Submit(ctx context.Context, filename, mimeType, defaultSpeaker string, body io.Reader) (*domain.ProcessingRun, error)
}

// RunReader is the inbound read model for processing runs.
type RunReader interface {
	GetByID(ctx context.Context, id string) (*domain.ProcessingRun, error)
}

// RunProcessor is the inbound contract for queued run processing.
type RunProcessor interface {
	ProcessByID(ctx context.Context, runID string) error
}

// SchemaProvider exposes the active field schema.
type SchemaProvider interface {
	Fields() []domain.FieldSchema
	StageFields(stage domain.Stage) []domain.FieldSchema
}

// RunReporter renders the review workbook of a completed run.
type RunReporter interface {
	ExportReport(ctx context.Context, id string, w io.Writer) error
}
