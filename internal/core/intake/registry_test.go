package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

func TestNewRegistryFromFieldsRejectsBadSchema(t *testing.T) {
	base := domain.FieldSchema{ID: "age", Stage: domain.Stage1, Section: "client_details", Type: domain.FieldText}

	tests := []struct {
		name   string
		fields []domain.FieldSchema
	}{
		{name: "no fields", fields: nil},
		{name: "empty id", fields: []domain.FieldSchema{{Stage: domain.Stage1, Section: "s", Type: domain.FieldText}}},
		{name: "dotted id", fields: []domain.FieldSchema{{ID: "a.b", Stage: domain.Stage1, Section: "s", Type: domain.FieldText}}},
		{name: "unknown stage", fields: []domain.FieldSchema{{ID: "a", Stage: "stage9", Section: "s", Type: domain.FieldText}}},
		{name: "unknown type", fields: []domain.FieldSchema{{ID: "a", Stage: domain.Stage1, Section: "s", Type: "slider"}}},
		{name: "missing section", fields: []domain.FieldSchema{{ID: "a", Stage: domain.Stage1, Type: domain.FieldText}}},
		{name: "select without options", fields: []domain.FieldSchema{{ID: "a", Stage: domain.Stage1, Section: "s", Type: domain.FieldSelect}}},
		{name: "duplicate key", fields: []domain.FieldSchema{base, base}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistryFromFields(tt.fields)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.ErrInvalidSchema))
		})
	}
}

func TestRegistryResolvePrefersEarliestStage(t *testing.T) {
	registry, err := NewRegistryFromFields([]domain.FieldSchema{
		{ID: "notes", Stage: domain.Stage1, Section: "referral", Type: domain.FieldTextarea},
		{ID: "notes", Stage: domain.Stage3, Section: "outcome", Type: domain.FieldTextarea},
	})
	require.NoError(t, err)

	field, ok := registry.Resolve("notes")
	require.True(t, ok)
	assert.Equal(t, domain.Stage1, field.Stage)

	_, ok = registry.Lookup(domain.FieldKey{Stage: domain.Stage3, FieldID: "notes"})
	assert.True(t, ok)
	_, ok = registry.Resolve("missing")
	assert.False(t, ok)
}

func TestRegistryForSection(t *testing.T) {
	registry, err := NewRegistry(DefaultFormDefinition())
	require.NoError(t, err)

	ids := func(fields []domain.FieldSchema) []string {
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			out = append(out, f.ID)
		}
		return out
	}

	assert.Equal(t, []string{"medications"}, ids(registry.ForSection("medications")))
	assert.Equal(t, []string{"familyHistory"}, ids(registry.ForSection("family_history")))
	assert.Len(t, registry.ForSection(GeneralSection), len(registry.Fields()))
	assert.Empty(t, registry.ForSection("billing"))
	assert.Len(t, registry.StageFields(domain.Stage3), 4)
}

func TestRegistryFieldsAreCopied(t *testing.T) {
	registry, err := NewRegistry(DefaultFormDefinition())
	require.NoError(t, err)

	fields := registry.Fields()
	fields[0].ID = "mutated"

	assert.Equal(t, "clientName", registry.Fields()[0].ID)
}

func TestRequiredFromFormMatchesDefaultRules(t *testing.T) {
	registry, err := NewRegistry(DefaultFormDefinition())
	require.NoError(t, err)

	assert.Equal(t, DefaultBusinessRules().RequiredFieldsPerStage, RequiredFromForm(registry))
}
