package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteFansOutToEveryMatchingBucket(t *testing.T) {
	turns := Segment("My mother has ADHD and I am taking medication daily", "parent")

	buckets := NewRouter().Route(turns)

	require.Len(t, buckets["family_history"], 1)
	require.Len(t, buckets["medications"], 1)
	require.Len(t, buckets[GeneralSection], 1)
	assert.Equal(t, turns[0], buckets["family_history"][0])
	assert.Equal(t, turns[0], buckets["medications"][0])
}

func TestRouteNeverDropsTurns(t *testing.T) {
	texts := []string{
		"",
		"nothing relevant here",
		"Medications: None currently.\nDrug Allergies: No known drug allergies.\nAge: 11 years old.\nThe weather was nice.",
	}
	router := NewRouter()
	for _, text := range texts {
		turns := Segment(text, "")
		buckets := router.Route(turns)
		assert.Len(t, buckets[GeneralSection], len(turns))
	}
}

func TestRouteRoutesByTopic(t *testing.T) {
	tests := []struct {
		text    string
		section string
	}{
		{text: "She is allergic to penicillin", section: "allergies"},
		{text: "There is a history of asthma", section: "medical_history"},
		{text: "He is in 5th class and right-handed", section: "client_details"},
		{text: "Referred by the GP due to concerns about attention", section: "referral"},
		{text: "Verbal consent was given at the start of the session", section: "session_details"},
		{text: "On methylphenidate 10mg", section: "medications"},
	}
	router := NewRouter()
	for _, tt := range tests {
		t.Run(tt.section, func(t *testing.T) {
			buckets := router.Route(Segment(tt.text, ""))
			assert.Len(t, buckets[tt.section], 1)
		})
	}
}

func TestRouterSectionsEndWithGeneral(t *testing.T) {
	sections := NewRouter().Sections()
	require.NotEmpty(t, sections)
	assert.Equal(t, "medications", sections[0])
	assert.Equal(t, GeneralSection, sections[len(sections)-1])
}
