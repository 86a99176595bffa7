// Package formdef loads intake form definitions and business rules from YAML.
package formdef

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/intake"
)

//go:embed schema.json
var definitionSchema []byte

const schemaURL = "intake-form-definition.json"

// Definition is a loaded form plus the rules the pipeline runs with.
type Definition struct {
	Form  domain.FormDefinition
	Rules domain.BusinessRules
}

type document struct {
	Stages []domain.StageDefinition `yaml:"stages"`
	Rules  *rulesDocument           `yaml:"rules"`
}

type rulesDocument struct {
	RequiredFieldsPerStage  map[domain.Stage][]string               `yaml:"required_fields_per_stage"`
	CrossFieldRules         []domain.CrossFieldRule                 `yaml:"cross_field_rules"`
	MinConfidenceToAutofill *float64                                `yaml:"min_confidence_to_autofill"`
	CrossFieldScope         domain.CrossFieldScope                  `yaml:"cross_field_scope"`
	ResolveConflicts        *bool                                   `yaml:"resolve_conflicts"`
	MergePolicies           map[domain.FieldType]domain.MergePolicy `yaml:"merge_policies"`
}

// Default returns the built-in three-stage form and its rules.
func Default() Definition {
	return Definition{
		Form:  intake.DefaultFormDefinition(),
		Rules: intake.DefaultBusinessRules(),
	}
}

// Load reads a definition file. An empty path selects the built-in form.
func Load(path string) (Definition, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read form definition %s: %w", path, err)
	}
	def, err := Parse(raw)
	if err != nil {
		return Definition{}, fmt.Errorf("load %s: %w", path, err)
	}
	return def, nil
}

// Parse validates raw YAML against the definition schema and decodes it.
// Required fields default to the form's required flags when the document
// carries no required_fields_per_stage.
func Parse(raw []byte) (Definition, error) {
	if err := validateDocument(raw); err != nil {
		return Definition{}, domain.WrapError(domain.ErrInvalidSchema, "parse form definition", err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Definition{}, domain.WrapError(domain.ErrInvalidSchema, "parse form definition", err)
	}

	form := domain.FormDefinition{Stages: doc.Stages}
	registry, err := intake.NewRegistry(form)
	if err != nil {
		return Definition{}, err
	}
	return Definition{Form: form, Rules: doc.Rules.toBusinessRules(registry)}, nil
}

func (r *rulesDocument) toBusinessRules(registry *intake.Registry) domain.BusinessRules {
	rules := domain.BusinessRules{
		MinConfidenceToAutofill: domain.DefaultMinConfidenceToAutofill,
		CrossFieldScope:         domain.CrossFieldScopeGlobal,
		ResolveConflicts:        true,
	}
	if r != nil {
		rules.RequiredFieldsPerStage = r.RequiredFieldsPerStage
		rules.CrossFieldRules = r.CrossFieldRules
		rules.MergePolicies = r.MergePolicies
		if r.MinConfidenceToAutofill != nil {
			rules.MinConfidenceToAutofill = *r.MinConfidenceToAutofill
		}
		if r.CrossFieldScope != "" {
			rules.CrossFieldScope = r.CrossFieldScope
		}
		if r.ResolveConflicts != nil {
			rules.ResolveConflicts = *r.ResolveConflicts
		}
	}
	if len(rules.RequiredFieldsPerStage) == 0 {
		rules.RequiredFieldsPerStage = intake.RequiredFromForm(registry)
	}
	return rules
}

func validateDocument(raw []byte) error {
	var decoded any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	if decoded == nil {
		return fmt.Errorf("document is empty")
	}

	// The validator expects JSON value types, so round-trip through JSON.
	asJSON, err := json.Marshal(decoded)
	if err != nil {
		return fmt.Errorf("convert yaml to json: %w", err)
	}
	var value any
	if err := json.Unmarshal(asJSON, &value); err != nil {
		return fmt.Errorf("convert yaml to json: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(definitionSchema)); err != nil {
		return nil, fmt.Errorf("add definition schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile definition schema: %w", err)
	}
	return schema, nil
}
