package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

func newDefaultValidator(t *testing.T, rules domain.BusinessRules) *Validator {
	t.Helper()
	registry, err := NewRegistry(DefaultFormDefinition())
	require.NoError(t, err)
	return NewValidator(registry, rules)
}

// orchestrationOf places every field of a stage in a single section.
func orchestrationOf(fields map[domain.Stage]map[string]domain.ExtractedField) domain.OrchestrationResult {
	out := domain.OrchestrationResult{
		Stages:          make(map[domain.Stage]domain.StageResult),
		GlobalConflicts: []domain.FieldConflict{},
	}
	for _, stage := range domain.Stages() {
		sr := domain.StageResult{Sections: map[string]domain.SectionResult{}}
		if f, ok := fields[stage]; ok {
			sr.Sections["extracted"] = domain.SectionResult{Fields: f}
		}
		out.Stages[stage] = sr
	}
	return out
}

func field(value any, confidence float64) domain.ExtractedField {
	return domain.ExtractedField{Value: value, Confidence: confidence, Evidence: evidenceAt(100)}
}

func planEntryFor(t *testing.T, result domain.ValidationResult, stage domain.Stage, fieldID string) domain.ApplyPlanEntry {
	t.Helper()
	for _, e := range result.ApplyPlan {
		if e.Stage == stage && e.FieldID == fieldID {
			return e
		}
	}
	t.Fatalf("no plan entry for %s.%s", stage, fieldID)
	return domain.ApplyPlanEntry{}
}

func TestValidatePlanEntries(t *testing.T) {
	tests := []struct {
		name       string
		stage      domain.Stage
		fieldID    string
		field      domain.ExtractedField
		wantStatus domain.ApplyStatus
		wantReason string
	}{
		{
			name:       "confidence at threshold is applied",
			stage:      domain.Stage2,
			fieldID:    "allergies",
			field:      field("NKDA", 0.78),
			wantStatus: domain.StatusAutoApply,
		},
		{
			name:       "confidence just below threshold is suggested",
			stage:      domain.Stage2,
			fieldID:    "allergies",
			field:      field("NKDA", 0.77999),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: "Low confidence (77%)",
		},
		{
			name:       "textarea at default extractor confidence is suggested",
			stage:      domain.Stage2,
			fieldID:    "familyHistory",
			field:      field("Her father had dyslexia.", 0.75),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: "Low confidence (75%)",
		},
		{
			name:       "malformed date is never applied",
			stage:      domain.Stage1,
			fieldID:    "dob",
			field:      field("02/03/2014", 1.0),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: `Validation error: date "02/03/2014" must match YYYY-MM-DD`,
		},
		{
			name:       "impossible calendar date",
			stage:      domain.Stage1,
			fieldID:    "dob",
			field:      field("2014-02-30", 1.0),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: `Validation error: date "2014-02-30" is not a calendar date`,
		},
		{
			name:       "time must be HH:MM",
			stage:      domain.Stage3,
			fieldID:    "assessmentTime",
			field:      field("25:00", 0.9),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: `Validation error: time "25:00" must match HH:MM`,
		},
		{
			name:       "checkbox needs a boolean",
			stage:      domain.Stage3,
			fieldID:    "consentGiven",
			field:      field("yes", 0.9),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: "Validation error: checkbox value must be boolean",
		},
		{
			name:       "checkboxes needs an array",
			stage:      domain.Stage2,
			fieldID:    "medications",
			field:      field("melatonin", 0.9),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: "Validation error: checkboxes value must be an array",
		},
		{
			name:       "empty checkboxes array is valid",
			stage:      domain.Stage2,
			fieldID:    "medications",
			field:      field([]string{}, 0.9),
			wantStatus: domain.StatusAutoApply,
		},
		{
			name:       "select option matches case-insensitively",
			stage:      domain.Stage1,
			fieldID:    "handedness",
			field:      field("Left", 0.9),
			wantStatus: domain.StatusAutoApply,
		},
		{
			name:       "select option outside the list",
			stage:      domain.Stage1,
			fieldID:    "handedness",
			field:      field("both", 0.9),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: `Validation error: "both" is not an allowed option`,
		},
		{
			name:       "blank text",
			stage:      domain.Stage1,
			fieldID:    "clientName",
			field:      field("  ", 0.9),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: "Validation error: empty value",
		},
		{
			name:       "field declared in another stage",
			stage:      domain.Stage1,
			fieldID:    "medications",
			field:      field([]string{}, 0.9),
			wantStatus: domain.StatusSuggestOnly,
			wantReason: "Validation error: unknown field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newDefaultValidator(t, DefaultBusinessRules())
			orch := orchestrationOf(map[domain.Stage]map[string]domain.ExtractedField{
				tt.stage: {tt.fieldID: tt.field},
			})

			result := v.Validate(orch)

			require.Len(t, result.ApplyPlan, 1)
			entry := planEntryFor(t, result, tt.stage, tt.fieldID)
			assert.Equal(t, tt.wantStatus, entry.Status)
			assert.Equal(t, tt.wantReason, entry.Reason)
			assert.Equal(t, "extracted", entry.SectionID)
			assert.Equal(t, tt.field.Confidence, entry.Confidence)
		})
	}
}

func TestValidateTypeErrorsBlockStageGate(t *testing.T) {
	v := newDefaultValidator(t, DefaultBusinessRules())
	orch := orchestrationOf(map[domain.Stage]map[string]domain.ExtractedField{
		domain.Stage1: {
			"clientName":     field("Ava Byrne", 0.9),
			"dob":            field("02/03/2014", 0.9),
			"guardianName":   field("Mary Byrne", 0.9),
			"assessmentDate": field("2025-01-15", 0.9),
		},
	})

	result := v.Validate(orch)

	gate := result.StageGates[domain.Stage1]
	assert.False(t, gate.CompletionReady)
	assert.Empty(t, gate.MissingRequiredFields)
	require.Len(t, gate.ValidationErrors, 1)
	assert.Contains(t, gate.ValidationErrors[0], "dob")
}

func TestValidateCrossFieldScope(t *testing.T) {
	stage1Complete := map[string]domain.ExtractedField{
		"clientName":     field("Ava Byrne", 0.9),
		"dob":            field("2014-03-02", 0.9),
		"guardianName":   field("Mary Byrne", 0.9),
		"assessmentDate": field("2025-01-15", 0.9),
		"age":            field("11 years", 0.9),
	}
	consentWithoutTime := map[string]domain.ExtractedField{
		"consentGiven":    field(true, 0.9),
		"recommendations": field("Weekly sessions are recommended.", 0.9),
	}
	orch := orchestrationOf(map[domain.Stage]map[string]domain.ExtractedField{
		domain.Stage1: stage1Complete,
		domain.Stage3: consentWithoutTime,
	})

	tests := []struct {
		name           string
		scope          domain.CrossFieldScope
		wantStage1Open bool
	}{
		{name: "global scope blocks every stage", scope: domain.CrossFieldScopeGlobal, wantStage1Open: false},
		{name: "stage scope blocks only the owning stage", scope: domain.CrossFieldScopeStage, wantStage1Open: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := DefaultBusinessRules()
			rules.CrossFieldScope = tt.scope
			result := newDefaultValidator(t, rules).Validate(orch)

			assert.Equal(t, []string{"Assessment time must be recorded when consent is given"}, result.Errors)
			assert.Equal(t, tt.wantStage1Open, result.StageGates[domain.Stage1].CompletionReady)
			assert.False(t, result.StageGates[domain.Stage3].CompletionReady)
			assert.Equal(t, result.Errors, result.StageGates[domain.Stage3].RuleViolations)
			assert.Empty(t, result.StageGates[domain.Stage1].RuleViolations)
		})
	}
}

func TestValidateIsPure(t *testing.T) {
	v := newDefaultValidator(t, DefaultBusinessRules())
	orch := orchestrationOf(map[domain.Stage]map[string]domain.ExtractedField{
		domain.Stage2: {"allergies": field("NKDA", 0.95), "medications": field([]string{}, 0.9)},
	})

	first := v.Validate(orch)
	second := v.Validate(orch)

	assert.Equal(t, first, second)
	assert.Equal(t, "allergies", first.ApplyPlan[0].FieldID)
	assert.Equal(t, "medications", first.ApplyPlan[1].FieldID)
}

func TestEvaluateRule(t *testing.T) {
	values := map[string]any{"age": "11 years", "consentGiven": true, "guardianName": ""}
	lookup := func(id string) (any, bool) {
		v, ok := values[id]
		return v, ok
	}

	tests := []struct {
		name     string
		rule     domain.CrossFieldRule
		violated bool
	}{
		{
			name:     "numeric comparison on leading number",
			rule:     domain.CrossFieldRule{ID: "r", When: domain.RuleCondition{Field: "age", Operator: domain.OpLessThan, Value: "18"}, Require: []string{"guardianName"}},
			violated: true,
		},
		{
			name: "condition does not hold",
			rule: domain.CrossFieldRule{ID: "r", When: domain.RuleCondition{Field: "age", Operator: domain.OpGreaterOrEqual, Value: "18"}, Require: []string{"guardianName"}},
		},
		{
			name:     "boolean equality",
			rule:     domain.CrossFieldRule{ID: "r", When: domain.RuleCondition{Field: "consentGiven", Operator: domain.OpEqual, Value: "TRUE"}, Require: []string{"assessmentTime"}},
			violated: true,
		},
		{
			name:     "absent field",
			rule:     domain.CrossFieldRule{ID: "r", When: domain.RuleCondition{Field: "dob", Operator: domain.OpAbsent}, Require: []string{"age", "guardianName"}},
			violated: true,
		},
		{
			name: "required field present",
			rule: domain.CrossFieldRule{ID: "r", When: domain.RuleCondition{Field: "age", Operator: domain.OpPresent}, Require: []string{"consentGiven"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := EvaluateRule(tt.rule, lookup)
			if tt.violated {
				assert.NotEmpty(t, msg)
				return
			}
			assert.Empty(t, msg)
		})
	}
}

func TestEvaluateRuleDefaultMessage(t *testing.T) {
	rule := domain.CrossFieldRule{
		ID:      "minor",
		When:    domain.RuleCondition{Field: "age", Operator: domain.OpLessThan, Value: "18"},
		Require: []string{"guardianName"},
	}
	msg := EvaluateRule(rule, func(id string) (any, bool) {
		if id == "age" {
			return "9 years", true
		}
		return nil, false
	})
	assert.Equal(t, "minor: guardianName required when age lt 18", msg)
}
