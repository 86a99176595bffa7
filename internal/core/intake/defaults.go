package intake

import "github.com/kirillkom/intake-assistant/internal/core/domain"

// DefaultFormDefinition is the built-in three-stage clinical intake form.
func DefaultFormDefinition() domain.FormDefinition {
	return domain.FormDefinition{
		Stages: []domain.StageDefinition{
			{
				ID:    domain.Stage1,
				Title: "Referral and background",
				Sections: []domain.SectionDefinition{
					{
						ID:    "client_details",
						Title: "Client details",
						Fields: []domain.FieldDefinition{
							{ID: "clientName", Label: "Client name", Type: domain.FieldText, Required: true},
							{ID: "dob", Label: "Date of birth", Type: domain.FieldDate, Required: true, Examples: []string{"2014-03-02"}},
							{ID: "age", Label: "Age", Type: domain.FieldText, Examples: []string{"11 years"}},
							{ID: "schoolYear", Label: "School year", Type: domain.FieldText, Examples: []string{"5th class"}},
							{ID: "handedness", Label: "Handedness", Type: domain.FieldSelect, Options: []string{"right", "left", "ambidextrous"}},
							{ID: "guardianName", Label: "Parent/guardian name", Type: domain.FieldText, Required: true},
							{ID: "assessmentDate", Label: "Assessment date", Type: domain.FieldDate, Required: true},
						},
					},
					{
						ID:    "referral",
						Title: "Referral",
						Fields: []domain.FieldDefinition{
							{ID: "referralReason", Label: "Reason for referral", Type: domain.FieldTextarea},
						},
					},
				},
			},
			{
				ID:    domain.Stage2,
				Title: "Medical and developmental history",
				Sections: []domain.SectionDefinition{
					{
						ID:    "medications",
						Title: "Medications",
						Fields: []domain.FieldDefinition{
							{ID: "medications", Label: "Current medications", Type: domain.FieldCheckboxes, Required: true},
						},
					},
					{
						ID:    "allergies",
						Title: "Allergies",
						Fields: []domain.FieldDefinition{
							{ID: "allergies", Label: "Drug allergies", Type: domain.FieldText, Required: true, Examples: []string{"NKDA"}},
						},
					},
					{
						ID:    "medical_history",
						Title: "Medical history",
						Fields: []domain.FieldDefinition{
							{ID: "medicalHistory", Label: "Medical history", Type: domain.FieldTextarea, Required: true},
						},
					},
					{
						ID:    "family_history",
						Title: "Family history",
						Fields: []domain.FieldDefinition{
							{ID: "familyHistory", Label: "Family history", Type: domain.FieldTextarea},
						},
					},
				},
			},
			{
				ID:    domain.Stage3,
				Title: "Assessment and recommendations",
				Sections: []domain.SectionDefinition{
					{
						ID:    "session_details",
						Title: "Session",
						Fields: []domain.FieldDefinition{
							{ID: "consentGiven", Label: "Consent given", Type: domain.FieldCheckbox, Required: true},
							{ID: "assessmentTime", Label: "Assessment time", Type: domain.FieldTime},
						},
					},
					{
						ID:    "outcome",
						Title: "Outcome",
						Fields: []domain.FieldDefinition{
							{ID: "observations", Label: "Clinical observations", Type: domain.FieldTextarea},
							{ID: "recommendations", Label: "Recommendations", Type: domain.FieldTextarea, Required: true},
						},
					},
				},
			},
		},
	}
}

// DefaultBusinessRules mirrors the required flags of DefaultFormDefinition.
func DefaultBusinessRules() domain.BusinessRules {
	return domain.BusinessRules{
		RequiredFieldsPerStage: map[domain.Stage][]string{
			domain.Stage1: {"clientName", "dob", "guardianName", "assessmentDate"},
			domain.Stage2: {"medications", "allergies", "medicalHistory"},
			domain.Stage3: {"consentGiven", "recommendations"},
		},
		CrossFieldRules: []domain.CrossFieldRule{
			{
				ID:      "minor-requires-guardian",
				Stage:   domain.Stage1,
				When:    domain.RuleCondition{Field: "age", Operator: domain.OpLessThan, Value: "18"},
				Require: []string{"guardianName"},
				Message: "Guardian name is required for clients under 18",
			},
			{
				ID:      "consent-requires-time",
				Stage:   domain.Stage3,
				When:    domain.RuleCondition{Field: "consentGiven", Operator: domain.OpEqual, Value: "true"},
				Require: []string{"assessmentTime"},
				Message: "Assessment time must be recorded when consent is given",
			},
		},
		MinConfidenceToAutofill: domain.DefaultMinConfidenceToAutofill,
		CrossFieldScope:         domain.CrossFieldScopeGlobal,
		ResolveConflicts:        true,
		MergePolicies: map[domain.FieldType]domain.MergePolicy{
			domain.FieldCheckboxes: domain.MergeFirstMatch,
			domain.FieldText:       domain.MergeFirstMatch,
		},
	}
}

// RequiredFromForm derives required-field lists from the form's flags.
func RequiredFromForm(registry *Registry) map[domain.Stage][]string {
	out := make(map[domain.Stage][]string)
	for _, field := range registry.Fields() {
		if field.Required {
			out[field.Stage] = append(out[field.Stage], field.ID)
		}
	}
	return out
}
