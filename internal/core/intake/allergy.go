package intake

import (
	"regexp"
	"strings"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

const (
	allergyConfidence         = 0.8
	allergyNegationConfidence = 0.95
	noKnownDrugAllergies      = "NKDA"
)

var (
	allergyNegation = regexp.MustCompile(`(?i)\b(?:no\s+known\s+(?:drug\s+)?allergies|nkda|no\s+allergies)\b`)
	allergyCapture  = regexp.MustCompile(`(?i)\ballerg(?:ies|ic)\s+to\s+([^.;\n]+)`)
)

// AllergyExtractor uses only the first turn that mentions allergies.
type AllergyExtractor struct {
	fieldID string
}

func NewAllergyExtractor() *AllergyExtractor {
	return &AllergyExtractor{fieldID: "allergies"}
}

func (e *AllergyExtractor) Name() string { return "allergy" }

func (e *AllergyExtractor) Applies(sectionID string) bool {
	return strings.Contains(sectionID, "medication") || strings.Contains(sectionID, "allerg")
}

func (e *AllergyExtractor) Extract(schema []domain.FieldSchema, turns []domain.TranscriptTurn) []Candidate {
	if !hasField(schema, e.fieldID) {
		return nil
	}
	for _, turn := range turns {
		if allergyNegation.MatchString(turn.Text) {
			return []Candidate{candidate(e.fieldID, noKnownDrugAllergies, allergyNegationConfidence, turn, "no known drug allergies")}
		}
		if m := allergyCapture.FindStringSubmatch(turn.Text); m != nil {
			value := strings.TrimSpace(m[1])
			if value != "" {
				return []Candidate{candidate(e.fieldID, value, allergyConfidence, turn, "allergy capture")}
			}
		}
	}
	return nil
}
