package ports

import (
	"context"
	"io"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// RunRepository persists and reads processing run state.
type RunRepository interface {
	Create(ctx context.Context, run *domain.ProcessingRun) error
	GetByID(ctx context.Context, id string) (*domain.ProcessingRun, error)
	UpdateStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result domain.ProcessResult) error
}

// ObjectStorage stores submitted transcripts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes transcript submission events.
type MessageQueue interface {
	PublishTranscriptSubmitted(ctx context.Context, runID string) error
	SubscribeTranscriptSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// TranscriptLoader extracts plain transcript text from a stored run.
type TranscriptLoader interface {
	Load(ctx context.Context, run *domain.ProcessingRun) (string, error)
}

// ReportExporter renders a processed run as a review workbook.
type ReportExporter interface {
	Export(ctx context.Context, run *domain.ProcessingRun, w io.Writer) error
}

// PipelineMetrics records pipeline outcomes.
type PipelineMetrics interface {
	ObserveRun(source string, duration float64, summary domain.RunSummary, err error)
}
