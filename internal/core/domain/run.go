package domain

import "time"

type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// ProcessResult is the primary pipeline output.
type ProcessResult struct {
	Orchestration OrchestrationResult `json:"orchestration"`
	Validation    ValidationResult    `json:"validation"`
	Turns         int                 `json:"turns"`
	FormState     map[string]any      `json:"form_state,omitempty"`
	LiveGates     map[Stage]LiveGate  `json:"live_gates,omitempty"`
}

// LiveGate is stage readiness recomputed from the case document.
type LiveGate struct {
	CompletionReady       bool     `json:"completion_ready"`
	MissingRequiredFields []string `json:"missing_required_fields"`
	ProvisionalFields     []string `json:"provisional_fields,omitempty"`
}

// ProcessingRun tracks one asynchronously processed transcript.
type ProcessingRun struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	MimeType       string         `json:"mime_type"`
	StoragePath    string         `json:"storage_path"`
	DefaultSpeaker string         `json:"default_speaker,omitempty"`
	Status         RunStatus      `json:"status"`
	Result         *ProcessResult `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RunSummary condenses a result for listings and metrics.
type RunSummary struct {
	Turns       int `json:"turns"`
	AutoApply   int `json:"auto_apply"`
	SuggestOnly int `json:"suggest_only"`
	ReadyStages int `json:"ready_stages"`
	Conflicts   int `json:"conflicts"`
}

func (r ProcessResult) Summary() RunSummary {
	s := RunSummary{Turns: r.Turns}
	for _, entry := range r.Validation.ApplyPlan {
		switch entry.Status {
		case StatusAutoApply:
			s.AutoApply++
		case StatusSuggestOnly:
			s.SuggestOnly++
		}
	}
	for _, gate := range r.Validation.StageGates {
		if gate.CompletionReady {
			s.ReadyStages++
		}
	}
	s.Conflicts = len(r.Orchestration.GlobalConflicts)
	return s
}
