package intake

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// Phase is the state of a single orchestration run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRouted
	PhaseExtracted
	PhaseDistributed
	PhaseGatesComputed
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRouted:
		return "routed"
	case PhaseExtracted:
		return "extracted"
	case PhaseDistributed:
		return "distributed"
	case PhaseGatesComputed:
		return "gates_computed"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type Orchestrator struct {
	registry  *Registry
	router    *Router
	extractor *SectionExtractor
	rules     domain.BusinessRules
	logger    *slog.Logger
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithExtractors(strategies ...FieldExtractor) Option {
	return func(o *Orchestrator) {
		if len(strategies) > 0 {
			o.extractor = NewSectionExtractor(o.rules, strategies...)
		}
	}
}

func NewOrchestrator(registry *Registry, rules domain.BusinessRules, opts ...Option) (*Orchestrator, error) {
	if registry == nil {
		return nil, domain.WrapError(domain.ErrInvalidSchema, "new orchestrator", fmt.Errorf("registry is nil"))
	}
	rules = rules.Normalized()
	if err := checkRequiredFields(registry, rules); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		registry:  registry,
		router:    NewRouter(),
		extractor: NewSectionExtractor(rules),
		rules:     rules,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func checkRequiredFields(registry *Registry, rules domain.BusinessRules) error {
	for stage, fields := range rules.RequiredFieldsPerStage {
		if !stage.Valid() {
			return domain.WrapError(domain.ErrInvalidSchema, "check required fields", fmt.Errorf("unknown stage %q", stage))
		}
		for _, fieldID := range fields {
			if _, ok := registry.Lookup(domain.FieldKey{Stage: stage, FieldID: fieldID}); !ok {
				return domain.WrapError(domain.ErrInvalidSchema, "check required fields", fmt.Errorf("required field %s.%s is not in the form", stage, fieldID))
			}
		}
	}
	return nil
}

func (o *Orchestrator) Registry() *Registry { return o.registry }

func (o *Orchestrator) Rules() domain.BusinessRules { return o.rules }

// OrchestrateText segments text and orchestrates the resulting turns.
func (o *Orchestrator) OrchestrateText(text, defaultSpeaker string) (domain.OrchestrationResult, error) {
	return o.Orchestrate(Segment(text, defaultSpeaker))
}

// Orchestrate runs routing, extraction, distribution and gate computation.
// Any failure aborts the run without a partial result.
func (o *Orchestrator) Orchestrate(turns []domain.TranscriptTurn) (domain.OrchestrationResult, error) {
	run := &orchestrationRun{turns: turns}

	run.buckets = o.router.Route(turns)
	if err := o.advance(run, PhaseRouted); err != nil {
		return domain.OrchestrationResult{}, err
	}

	if err := o.extract(run); err != nil {
		return domain.OrchestrationResult{}, err
	}
	if err := o.advance(run, PhaseExtracted); err != nil {
		return domain.OrchestrationResult{}, err
	}

	o.distribute(run)
	if err := o.advance(run, PhaseDistributed); err != nil {
		return domain.OrchestrationResult{}, err
	}

	o.computeGates(run)
	if err := o.advance(run, PhaseGatesComputed); err != nil {
		return domain.OrchestrationResult{}, err
	}

	if err := o.advance(run, PhaseDone); err != nil {
		return domain.OrchestrationResult{}, err
	}
	return run.result, nil
}

type orchestrationRun struct {
	phase       Phase
	turns       []domain.TranscriptTurn
	buckets     map[string][]domain.TranscriptTurn
	extractions []domain.SectionExtraction
	result      domain.OrchestrationResult
}

func (o *Orchestrator) advance(run *orchestrationRun, next Phase) error {
	if next != run.phase+1 {
		return fmt.Errorf("orchestration: illegal transition %s -> %s", run.phase, next)
	}
	run.phase = next
	o.logger.Debug("orchestration_phase", "phase", next.String(), "turns", len(run.turns))
	return nil
}

func (o *Orchestrator) extract(run *orchestrationRun) error {
	for _, sectionID := range o.router.Sections() {
		turns := run.buckets[sectionID]
		if len(turns) == 0 {
			continue
		}
		schema := o.registry.ForSection(sectionID)
		if len(schema) == 0 {
			continue
		}

		extraction := o.extractor.Extract(sectionID, schema, turns)
		for _, fieldID := range domain.SortedKeys(extraction.Fields) {
			field := extraction.Fields[fieldID]
			if math.IsNaN(field.Confidence) || field.Confidence < 0 || field.Confidence > 1 {
				return fmt.Errorf("extract %s: extractor %q produced confidence %v for %s", sectionID, field.Extractor, field.Confidence, fieldID)
			}
		}
		run.extractions = append(run.extractions, extraction)
	}
	return nil
}

func (o *Orchestrator) distribute(run *orchestrationRun) {
	run.result = domain.OrchestrationResult{
		Stages:          make(map[domain.Stage]domain.StageResult, len(domain.Stages())),
		GlobalConflicts: []domain.FieldConflict{},
	}
	for _, stage := range domain.Stages() {
		run.result.Stages[stage] = domain.StageResult{
			Sections:              make(map[string]domain.SectionResult),
			MissingRequiredFields: []string{},
		}
	}

	for _, extraction := range run.extractions {
		for _, fieldID := range domain.SortedKeys(extraction.Fields) {
			schema, ok := o.registry.Resolve(fieldID)
			if !ok {
				o.logger.Debug("extracted_field_dropped", "section", extraction.SectionID, "field", fieldID)
				continue
			}
			stageResult := run.result.Stages[schema.Stage]
			section, ok := stageResult.Sections[extraction.SectionID]
			if !ok {
				section = domain.SectionResult{Fields: make(map[string]domain.ExtractedField)}
				stageResult.Sections[extraction.SectionID] = section
			}
			section.Fields[fieldID] = extraction.Fields[fieldID]
		}
	}

	conflicts := collectConflicts(run.result, o.router.Sections())
	if o.rules.ResolveConflicts {
		resolveConflicts(&run.result, conflicts)
	}
	run.result.GlobalConflicts = conflicts
}

func (o *Orchestrator) computeGates(run *orchestrationRun) {
	for _, stage := range domain.Stages() {
		stageResult := run.result.Stages[stage]
		stageResult.MissingRequiredFields = MissingRequired(o.rules.RequiredFieldsPerStage[stage], stageResult.HasField)
		stageResult.CompletionReady = len(stageResult.MissingRequiredFields) == 0
		run.result.Stages[stage] = stageResult
	}
}

// MissingRequired keeps the configured order of required ids not present.
func MissingRequired(required []string, present func(fieldID string) bool) []string {
	missing := make([]string, 0)
	for _, fieldID := range required {
		if !present(fieldID) {
			missing = append(missing, fieldID)
		}
	}
	return missing
}
