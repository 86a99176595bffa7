package intake

import (
	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// Pipeline bundles the orchestrator and validator built over one form.
type Pipeline struct {
	orchestrator *Orchestrator
	validator    *Validator
}

func NewPipeline(def domain.FormDefinition, rules domain.BusinessRules, opts ...Option) (*Pipeline, error) {
	registry, err := NewRegistry(def)
	if err != nil {
		return nil, err
	}
	orchestrator, err := NewOrchestrator(registry, rules, opts...)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		orchestrator: orchestrator,
		validator:    NewValidator(registry, orchestrator.Rules()),
	}, nil
}

// NewDefaultPipeline builds the pipeline for the built-in form.
func NewDefaultPipeline(opts ...Option) (*Pipeline, error) {
	return NewPipeline(DefaultFormDefinition(), DefaultBusinessRules(), opts...)
}

func (p *Pipeline) Registry() *Registry { return p.orchestrator.Registry() }

func (p *Pipeline) Rules() domain.BusinessRules { return p.orchestrator.Rules() }

func (p *Pipeline) ProcessText(text, defaultSpeaker string) (domain.ProcessResult, error) {
	return p.ProcessTurns(Segment(text, defaultSpeaker))
}

func (p *Pipeline) ProcessDialogue(lines []domain.DialogueLine) (domain.ProcessResult, error) {
	return p.ProcessTurns(SegmentDialogue(lines))
}

func (p *Pipeline) ProcessTurns(turns []domain.TranscriptTurn) (domain.ProcessResult, error) {
	if err := ValidateTurns(turns); err != nil {
		return domain.ProcessResult{}, err
	}
	orchestration, err := p.orchestrator.Orchestrate(turns)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	return domain.ProcessResult{
		Orchestration: orchestration,
		Validation:    p.validator.Validate(orchestration),
		Turns:         len(turns),
	}, nil
}
