package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		speaker string
		want    []domain.TranscriptTurn
	}{
		{
			name: "empty input yields no turns",
			text: "",
			want: []domain.TranscriptTurn{},
		},
		{
			name: "blank lines only yields no turns",
			text: "\n   \n\t\n",
			want: []domain.TranscriptTurn{},
		},
		{
			name:    "one turn per non-blank line with synthetic timing",
			text:    "Hello there\n\n  second line here now  \r\nthird",
			speaker: "clinician",
			want: []domain.TranscriptTurn{
				{Speaker: "clinician", StartMS: 0, EndMS: 800, Text: "Hello there"},
				{Speaker: "clinician", StartMS: 1800, EndMS: 3400, Text: "second line here now"},
				{Speaker: "clinician", StartMS: 4400, EndMS: 4800, Text: "third"},
			},
		},
		{
			name: "missing speaker falls back to default label",
			text: "Age: 11 years old.",
			want: []domain.TranscriptTurn{
				{Speaker: DefaultSpeaker, StartMS: 0, EndMS: 1600, Text: "Age: 11 years old."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Segment(tt.text, tt.speaker)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentTimelineIsMonotonic(t *testing.T) {
	texts := []string{
		"a\nb\nc",
		"Medications: None currently.\nDrug Allergies: No known drug allergies or intolerances documented.\nAge: 11 years old.",
		"one two three four five six seven eight nine ten\n\nshort\n" + "x y",
	}
	for _, text := range texts {
		turns := Segment(text, "")
		for i := 0; i+1 < len(turns); i++ {
			assert.LessOrEqual(t, turns[i].StartMS, turns[i].EndMS)
			assert.Less(t, turns[i].EndMS, turns[i+1].StartMS, "turns must not overlap")
		}
	}
}

func TestSegmentDialogueKeepsSpeakers(t *testing.T) {
	turns := SegmentDialogue([]domain.DialogueLine{
		{Speaker: "clinician", Text: "Any allergies?"},
		{Speaker: "parent", Text: "  "},
		{Speaker: "", Text: "No known drug allergies."},
	})

	require.Len(t, turns, 2)
	assert.Equal(t, "clinician", turns[0].Speaker)
	assert.Equal(t, DefaultSpeaker, turns[1].Speaker)
	assert.Equal(t, turns[0].EndMS+turnGapMS, turns[1].StartMS)
}

func TestValidateTurns(t *testing.T) {
	tests := []struct {
		name    string
		turns   []domain.TranscriptTurn
		wantErr bool
	}{
		{name: "empty sequence is valid", turns: nil},
		{
			name:  "ordered turns are valid",
			turns: []domain.TranscriptTurn{{Text: "a", StartMS: 0, EndMS: 10}, {Text: "b", StartMS: 10, EndMS: 20}},
		},
		{
			name:    "empty text is rejected",
			turns:   []domain.TranscriptTurn{{Text: " ", StartMS: 0, EndMS: 10}},
			wantErr: true,
		},
		{
			name:    "inverted span is rejected",
			turns:   []domain.TranscriptTurn{{Text: "a", StartMS: 20, EndMS: 10}},
			wantErr: true,
		},
		{
			name:    "overlapping turns are rejected",
			turns:   []domain.TranscriptTurn{{Text: "a", StartMS: 0, EndMS: 50}, {Text: "b", StartMS: 40, EndMS: 60}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurns(tt.turns)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
		})
	}
}
