package domain

import (
	"maps"
	"slices"
)

type ApplyStatus string

const (
	StatusAutoApply   ApplyStatus = "auto_apply"
	StatusSuggestOnly ApplyStatus = "suggest_only"
)

// ApplyPlanEntry is the apply decision for one extracted field.
type ApplyPlanEntry struct {
	FieldID    string      `json:"field_id"`
	Stage      Stage       `json:"stage"`
	SectionID  string      `json:"section_id"`
	Status     ApplyStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Confidence float64     `json:"confidence"`
	Value      any         `json:"value"`
}

func (e ApplyPlanEntry) Key() FieldKey {
	return FieldKey{Stage: e.Stage, FieldID: e.FieldID}
}

type StageGate struct {
	CompletionReady       bool     `json:"completion_ready"`
	MissingRequiredFields []string `json:"missing_required_fields"`
	ValidationErrors      []string `json:"validation_errors,omitempty"`
	RuleViolations        []string `json:"rule_violations,omitempty"`
}

type ValidationResult struct {
	ApplyPlan  []ApplyPlanEntry    `json:"apply_plan"`
	StageGates map[Stage]StageGate `json:"stage_gates"`
	Errors     []string            `json:"errors"`
}

// CrossFieldScope controls which rule violations block a stage gate.
type CrossFieldScope string

const (
	CrossFieldScopeGlobal CrossFieldScope = "global"
	CrossFieldScopeStage  CrossFieldScope = "stage"
)

type RuleOperator string

const (
	OpLessThan       RuleOperator = "lt"
	OpLessOrEqual    RuleOperator = "lte"
	OpGreaterThan    RuleOperator = "gt"
	OpGreaterOrEqual RuleOperator = "gte"
	OpEqual          RuleOperator = "eq"
	OpNotEqual       RuleOperator = "ne"
	OpPresent        RuleOperator = "present"
	OpAbsent         RuleOperator = "absent"
)

type RuleCondition struct {
	Field    string       `json:"field" yaml:"field"`
	Operator RuleOperator `json:"operator" yaml:"operator"`
	Value    string       `json:"value,omitempty" yaml:"value,omitempty"`
}

// CrossFieldRule requires the Require fields whenever When holds.
type CrossFieldRule struct {
	ID      string        `json:"id" yaml:"id"`
	Stage   Stage         `json:"stage,omitempty" yaml:"stage,omitempty"`
	When    RuleCondition `json:"when" yaml:"when"`
	Require []string      `json:"require" yaml:"require"`
	Message string        `json:"message" yaml:"message"`
}

const DefaultMinConfidenceToAutofill = 0.78

type BusinessRules struct {
	RequiredFieldsPerStage  map[Stage][]string        `json:"required_fields_per_stage" yaml:"required_fields_per_stage"`
	CrossFieldRules         []CrossFieldRule          `json:"cross_field_rules" yaml:"cross_field_rules"`
	MinConfidenceToAutofill float64                   `json:"min_confidence_to_autofill" yaml:"min_confidence_to_autofill"`
	CrossFieldScope         CrossFieldScope           `json:"cross_field_scope" yaml:"cross_field_scope"`
	ResolveConflicts        bool                      `json:"resolve_conflicts" yaml:"resolve_conflicts"`
	MergePolicies           map[FieldType]MergePolicy `json:"merge_policies,omitempty" yaml:"merge_policies,omitempty"`
}

// Normalized fills unset values with defaults.
func (r BusinessRules) Normalized() BusinessRules {
	out := r
	if out.MinConfidenceToAutofill <= 0 {
		out.MinConfidenceToAutofill = DefaultMinConfidenceToAutofill
	}
	if out.CrossFieldScope == "" {
		out.CrossFieldScope = CrossFieldScopeGlobal
	}
	if out.RequiredFieldsPerStage == nil {
		out.RequiredFieldsPerStage = map[Stage][]string{}
	}
	return out
}

// MergePolicyFor returns the in-section merge policy for a field type.
func (r BusinessRules) MergePolicyFor(t FieldType) MergePolicy {
	if p, ok := r.MergePolicies[t]; ok && p.Valid() {
		return p
	}
	return MergeFirstMatch
}

// SortedKeys returns map keys in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
