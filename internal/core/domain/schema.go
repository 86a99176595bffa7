package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Stage string

const (
	Stage1 Stage = "stage1"
	Stage2 Stage = "stage2"
	Stage3 Stage = "stage3"
)

// Stages returns every assessment stage in form order.
func Stages() []Stage {
	return []Stage{Stage1, Stage2, Stage3}
}

func (s Stage) Valid() bool {
	switch s {
	case Stage1, Stage2, Stage3:
		return true
	default:
		return false
	}
}

type FieldType string

const (
	FieldText              FieldType = "text"
	FieldTextarea          FieldType = "textarea"
	FieldSelect            FieldType = "select"
	FieldCheckbox          FieldType = "checkbox"
	FieldCheckboxes        FieldType = "checkboxes"
	FieldDate              FieldType = "date"
	FieldTime              FieldType = "time"
	FieldGroup             FieldType = "group"
	FieldCheckboxWithNotes FieldType = "checkbox_with_notes"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldSelect, FieldCheckbox, FieldCheckboxes,
		FieldDate, FieldTime, FieldGroup, FieldCheckboxWithNotes:
		return true
	default:
		return false
	}
}

// FieldSchema is one flattened form field. It is never mutated after the
// registry is built.
type FieldSchema struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	Stage         Stage     `json:"stage"`
	Section       string    `json:"section"`
	Type          FieldType `json:"type"`
	Required      bool      `json:"required"`
	AllowedValues []string  `json:"allowed_values,omitempty"`
	Examples      []string  `json:"examples,omitempty"`
}

func (f FieldSchema) Key() FieldKey {
	return FieldKey{Stage: f.Stage, FieldID: f.ID}
}

// FieldKey joins schema, extraction, apply plan and the case document.
type FieldKey struct {
	Stage   Stage  `json:"stage"`
	FieldID string `json:"field_id"`
}

// String renders the dotted document path, e.g. "stage1.medicalHistory".
func (k FieldKey) String() string {
	return string(k.Stage) + "." + k.FieldID
}

func (k FieldKey) Valid() bool {
	return k.Stage.Valid() && k.FieldID != "" && !strings.Contains(k.FieldID, ".")
}

// ParseFieldKey is the inverse of FieldKey.String.
func ParseFieldKey(path string) (FieldKey, error) {
	stage, fieldID, ok := strings.Cut(path, ".")
	if !ok {
		return FieldKey{}, WrapError(ErrInvalidInput, "parse field key", fmt.Errorf("missing stage separator in %q", path))
	}
	key := FieldKey{Stage: Stage(stage), FieldID: fieldID}
	if !key.Valid() {
		return FieldKey{}, WrapError(ErrInvalidInput, "parse field key", fmt.Errorf("malformed field path %q", path))
	}
	return key, nil
}

// FormDefinition is the declarative stage -> section -> field form layout.
type FormDefinition struct {
	Stages []StageDefinition `json:"stages" yaml:"stages"`
}

type StageDefinition struct {
	ID       Stage               `json:"id" yaml:"id"`
	Title    string              `json:"title" yaml:"title"`
	Sections []SectionDefinition `json:"sections" yaml:"sections"`
}

type SectionDefinition struct {
	ID     string            `json:"id" yaml:"id"`
	Title  string            `json:"title" yaml:"title"`
	Fields []FieldDefinition `json:"fields" yaml:"fields"`
}

type FieldDefinition struct {
	ID       string    `json:"id" yaml:"id"`
	Label    string    `json:"label" yaml:"label"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Examples []string  `json:"examples,omitempty" yaml:"examples,omitempty"`
}

var errEmptyForm = errors.New("form definition has no stages")

// Flatten turns the nested definition into schema rows in declaration order.
func (d FormDefinition) Flatten() ([]FieldSchema, error) {
	if len(d.Stages) == 0 {
		return nil, WrapError(ErrInvalidSchema, "flatten form", errEmptyForm)
	}

	out := make([]FieldSchema, 0)
	seenStages := make(map[Stage]bool, len(d.Stages))
	for _, stage := range d.Stages {
		if !stage.ID.Valid() {
			return nil, WrapError(ErrInvalidSchema, "flatten form", fmt.Errorf("unknown stage %q", stage.ID))
		}
		if seenStages[stage.ID] {
			return nil, WrapError(ErrInvalidSchema, "flatten form", fmt.Errorf("stage %q declared twice", stage.ID))
		}
		seenStages[stage.ID] = true

		for _, section := range stage.Sections {
			sectionID := NormalizeSectionID(section.ID)
			if sectionID == "" {
				return nil, WrapError(ErrInvalidSchema, "flatten form", fmt.Errorf("stage %q has a section without id", stage.ID))
			}
			for _, field := range section.Fields {
				out = append(out, FieldSchema{
					ID:            strings.TrimSpace(field.ID),
					Label:         strings.TrimSpace(field.Label),
					Stage:         stage.ID,
					Section:       sectionID,
					Type:          field.Type,
					Required:      field.Required,
					AllowedValues: field.Options,
					Examples:      field.Examples,
				})
			}
		}
	}
	return out, nil
}

// NormalizeSectionID lower-cases a section key and joins words with underscores.
func NormalizeSectionID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.NewReplacer(" ", "_", "-", "_").Replace(id)
	return id
}
