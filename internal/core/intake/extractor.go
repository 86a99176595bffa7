package intake

import (
	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// Candidate is one value proposed by a FieldExtractor.
type Candidate struct {
	FieldID string
	Field   domain.ExtractedField
}

// FieldExtractor is one extraction strategy. Applies selects the routing
// buckets it runs on; Extract only proposes fields present in schema.
type FieldExtractor interface {
	Name() string
	Applies(sectionID string) bool
	Extract(schema []domain.FieldSchema, turns []domain.TranscriptTurn) []Candidate
}

// SectionExtractor runs every applicable strategy, in order, over one bucket.
// Merge policies come from rules.
type SectionExtractor struct {
	strategies []FieldExtractor
	rules      domain.BusinessRules
}

func NewSectionExtractor(rules domain.BusinessRules, strategies ...FieldExtractor) *SectionExtractor {
	if len(strategies) == 0 {
		strategies = DefaultExtractors()
	}
	return &SectionExtractor{
		strategies: strategies,
		rules:      rules,
	}
}

// DefaultExtractors returns the built-in strategies in precedence order.
func DefaultExtractors() []FieldExtractor {
	return []FieldExtractor{
		NewMedicationExtractor(),
		NewAllergyExtractor(),
		NewDemographicExtractor(),
		NewSessionExtractor(),
		NewTextareaExtractor(),
	}
}

func (e *SectionExtractor) Extract(sectionID string, schema []domain.FieldSchema, turns []domain.TranscriptTurn) domain.SectionExtraction {
	out := domain.SectionExtraction{
		SectionID: sectionID,
		Fields:    make(map[string]domain.ExtractedField),
	}
	if len(turns) == 0 || len(schema) == 0 {
		return out
	}

	for _, strategy := range e.strategies {
		if !strategy.Applies(sectionID) {
			continue
		}
		for _, c := range strategy.Extract(schema, turns) {
			field, ok := schemaField(schema, c.FieldID)
			if !ok {
				continue
			}
			c.Field.Extractor = strategy.Name()

			current, exists := out.Fields[c.FieldID]
			if !exists {
				out.Fields[c.FieldID] = c.Field
				continue
			}
			if e.rules.MergePolicyFor(field.Type) == domain.MergeHighestConfidence && prefer(c.Field, current) {
				out.Fields[c.FieldID] = c.Field
			}
		}
	}
	return out
}

func schemaField(schema []domain.FieldSchema, fieldID string) (domain.FieldSchema, bool) {
	for _, f := range schema {
		if f.ID == fieldID {
			return f, true
		}
	}
	return domain.FieldSchema{}, false
}

func hasField(schema []domain.FieldSchema, fieldID string) bool {
	_, ok := schemaField(schema, fieldID)
	return ok
}

func candidate(fieldID string, value any, confidence float64, turn domain.TranscriptTurn, notes string) Candidate {
	return Candidate{
		FieldID: fieldID,
		Field: domain.ExtractedField{
			Value:      value,
			Confidence: confidence,
			Evidence:   domain.EvidenceFromTurn(turn),
			Notes:      notes,
		},
	}
}
