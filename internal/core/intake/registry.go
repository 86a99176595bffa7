// Package intake turns free-text clinical intake transcripts into typed,
// confidence-scored form values and a gated apply plan.
//
// The pipeline is synchronous and pure: Segment -> Route -> Extract ->
// Orchestrate -> Validate. Nothing in this package performs I/O or mutates
// its inputs, so identical transcripts always produce identical results.
package intake

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// Registry is the immutable catalog of every form field across all stages.
type Registry struct {
	fields []domain.FieldSchema
	byKey  map[domain.FieldKey]domain.FieldSchema
	byID   map[string]domain.FieldSchema
}

func NewRegistry(def domain.FormDefinition) (*Registry, error) {
	fields, err := def.Flatten()
	if err != nil {
		return nil, err
	}
	return NewRegistryFromFields(fields)
}

func NewRegistryFromFields(fields []domain.FieldSchema) (*Registry, error) {
	r := &Registry{
		fields: make([]domain.FieldSchema, 0, len(fields)),
		byKey:  make(map[domain.FieldKey]domain.FieldSchema, len(fields)),
		byID:   make(map[string]domain.FieldSchema, len(fields)),
	}
	for _, field := range fields {
		if err := validateFieldSchema(field); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidSchema, "build registry", err)
		}
		key := field.Key()
		if _, exists := r.byKey[key]; exists {
			return nil, domain.WrapError(domain.ErrInvalidSchema, "build registry", fmt.Errorf("duplicate field %s", key))
		}
		field.AllowedValues = slices.Clone(field.AllowedValues)
		field.Examples = slices.Clone(field.Examples)

		r.fields = append(r.fields, field)
		r.byKey[key] = field
		if _, exists := r.byID[field.ID]; !exists {
			r.byID[field.ID] = field
		}
	}
	if len(r.fields) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidSchema, "build registry", fmt.Errorf("no fields declared"))
	}
	return r, nil
}

func validateFieldSchema(field domain.FieldSchema) error {
	switch {
	case strings.TrimSpace(field.ID) == "":
		return fmt.Errorf("field in section %q has empty id", field.Section)
	case !field.Key().Valid():
		return fmt.Errorf("field %q: invalid id or stage %q", field.ID, field.Stage)
	case !field.Type.Valid():
		return fmt.Errorf("field %s: unknown type %q", field.Key(), field.Type)
	case field.Section == "":
		return fmt.Errorf("field %s: empty section", field.Key())
	}
	if field.Type == domain.FieldSelect && len(field.AllowedValues) == 0 {
		return fmt.Errorf("field %s: select requires options", field.Key())
	}
	return nil
}

// Fields returns every field in declaration order.
func (r *Registry) Fields() []domain.FieldSchema {
	return slices.Clone(r.fields)
}

func (r *Registry) Lookup(key domain.FieldKey) (domain.FieldSchema, bool) {
	field, ok := r.byKey[key]
	return field, ok
}

// Resolve finds the owning field for an extracted field id. When the same id
// is declared in several stages the earliest declaration wins.
func (r *Registry) Resolve(fieldID string) (domain.FieldSchema, bool) {
	field, ok := r.byID[fieldID]
	return field, ok
}

func (r *Registry) StageFields(stage domain.Stage) []domain.FieldSchema {
	out := make([]domain.FieldSchema, 0)
	for _, field := range r.fields {
		if field.Stage == stage {
			out = append(out, field)
		}
	}
	return out
}

// ForSection returns the fields a routing bucket may populate: those whose
// section or id matches the bucket. The catch-all bucket sees every field.
func (r *Registry) ForSection(sectionID string) []domain.FieldSchema {
	out := make([]domain.FieldSchema, 0)
	for _, field := range r.fields {
		if sectionMatchesField(sectionID, field) {
			out = append(out, field)
		}
	}
	return out
}

func sectionMatchesField(sectionID string, field domain.FieldSchema) bool {
	if sectionID == "" {
		return false
	}
	if sectionID == GeneralSection {
		return true
	}
	if field.Section == sectionID || strings.Contains(field.Section, sectionID) || strings.Contains(sectionID, field.Section) {
		return true
	}
	compact := strings.ReplaceAll(sectionID, "_", "")
	return strings.Contains(strings.ToLower(field.ID), compact)
}
