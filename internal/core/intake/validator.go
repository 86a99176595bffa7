package intake

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

var (
	datePatternISO = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePatternHM  = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Validator gates extracted fields into an apply plan. It is a pure
// function of the orchestration result.
type Validator struct {
	registry *Registry
	rules    domain.BusinessRules
}

func NewValidator(registry *Registry, rules domain.BusinessRules) *Validator {
	return &Validator{registry: registry, rules: rules.Normalized()}
}

func (v *Validator) Validate(orch domain.OrchestrationResult) domain.ValidationResult {
	result := domain.ValidationResult{
		ApplyPlan:  []domain.ApplyPlanEntry{},
		StageGates: make(map[domain.Stage]domain.StageGate, len(domain.Stages())),
		Errors:     []string{},
	}

	typeErrors := make(map[domain.Stage][]string)
	violations := make(map[domain.Stage][]string)
	for _, stage := range domain.Stages() {
		stageResult := orch.Stages[stage]
		for _, sectionID := range domain.SortedKeys(stageResult.Sections) {
			fields := stageResult.Sections[sectionID].Fields
			for _, fieldID := range domain.SortedKeys(fields) {
				entry := v.planEntry(stage, sectionID, fieldID, fields[fieldID])
				if strings.HasPrefix(entry.Reason, validationErrorPrefix) {
					typeErrors[stage] = append(typeErrors[stage], fieldID+": "+strings.TrimPrefix(entry.Reason, validationErrorPrefix))
				}
				result.ApplyPlan = append(result.ApplyPlan, entry)
			}
		}

		lookup := stageLookup(stageResult)
		for _, rule := range v.rules.CrossFieldRules {
			if rule.Stage != "" && rule.Stage != stage {
				continue
			}
			if msg := EvaluateRule(rule, lookup); msg != "" {
				violations[stage] = append(violations[stage], msg)
				result.Errors = append(result.Errors, msg)
			}
		}
	}

	for _, stage := range domain.Stages() {
		missing := MissingRequired(v.rules.RequiredFieldsPerStage[stage], orch.Stages[stage].HasField)
		blocking := len(violations[stage])
		if v.rules.CrossFieldScope == domain.CrossFieldScopeGlobal {
			blocking = len(result.Errors)
		}
		result.StageGates[stage] = domain.StageGate{
			CompletionReady:       len(typeErrors[stage]) == 0 && len(missing) == 0 && blocking == 0,
			MissingRequiredFields: missing,
			ValidationErrors:      typeErrors[stage],
			RuleViolations:        violations[stage],
		}
	}
	return result
}

const validationErrorPrefix = "Validation error: "

func (v *Validator) planEntry(stage domain.Stage, sectionID, fieldID string, field domain.ExtractedField) domain.ApplyPlanEntry {
	entry := domain.ApplyPlanEntry{
		FieldID:    fieldID,
		Stage:      stage,
		SectionID:  sectionID,
		Confidence: field.Confidence,
		Value:      field.Value,
	}

	schema, ok := v.registry.Lookup(domain.FieldKey{Stage: stage, FieldID: fieldID})
	if !ok {
		entry.Status = domain.StatusSuggestOnly
		entry.Reason = validationErrorPrefix + "unknown field"
		return entry
	}
	if reason := CheckValue(schema, field.Value); reason != "" {
		entry.Status = domain.StatusSuggestOnly
		entry.Reason = validationErrorPrefix + reason
		return entry
	}
	if field.Confidence >= v.rules.MinConfidenceToAutofill {
		entry.Status = domain.StatusAutoApply
		return entry
	}
	entry.Status = domain.StatusSuggestOnly
	entry.Reason = fmt.Sprintf("Low confidence (%d%%)", int(math.Floor(field.Confidence*100+1e-9)))
	return entry
}

// CheckValue returns why value is not valid for the field type, or "".
func CheckValue(field domain.FieldSchema, value any) string {
	switch field.Type {
	case domain.FieldDate:
		s, ok := value.(string)
		if !ok {
			return "date must be a string"
		}
		if !datePatternISO.MatchString(s) {
			return fmt.Sprintf("date %q must match YYYY-MM-DD", s)
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Sprintf("date %q is not a calendar date", s)
		}
	case domain.FieldTime:
		s, ok := value.(string)
		if !ok {
			return "time must be a string"
		}
		if !timePatternHM.MatchString(s) {
			return fmt.Sprintf("time %q must match HH:MM", s)
		}
	case domain.FieldCheckbox:
		if _, ok := value.(bool); !ok {
			return "checkbox value must be boolean"
		}
	case domain.FieldCheckboxes:
		switch value.(type) {
		case []string, []any:
		default:
			return "checkboxes value must be an array"
		}
	case domain.FieldText, domain.FieldTextarea:
		s, ok := value.(string)
		if !ok {
			return "value must be text"
		}
		if strings.TrimSpace(s) == "" {
			return "empty value"
		}
	case domain.FieldSelect:
		s, ok := value.(string)
		if !ok {
			return "value must be text"
		}
		if strings.TrimSpace(s) == "" {
			return "empty value"
		}
		if len(field.AllowedValues) > 0 && !slices.ContainsFunc(field.AllowedValues, func(opt string) bool {
			return strings.EqualFold(opt, s)
		}) {
			return fmt.Sprintf("%q is not an allowed option", s)
		}
	}
	return ""
}

func stageLookup(stageResult domain.StageResult) FieldLookup {
	return func(fieldID string) (any, bool) {
		field, ok := stageResult.Field(fieldID)
		if !ok {
			return nil, false
		}
		return field.Value, true
	}
}

// IsEmptyValueReason reports whether a plan entry was held back because the
// source value was empty.
func IsEmptyValueReason(reason string) bool {
	return reason == validationErrorPrefix+"empty value"
}
