package intake

import (
	"regexp"
	"strings"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

const (
	medicationConfidence         = 0.85
	medicationNegationConfidence = 0.9
)

var (
	medicationNegations = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bno\s+(?:current\s+|regular\s+|other\s+)?(?:medications?|meds|medicines?)\b`),
		regexp.MustCompile(`(?i)\bnot\s+(?:currently\s+)?taking\s+(?:any(?:thing)?|medications?|meds)\b`),
		regexp.MustCompile(`(?i)\bnot\s+on\s+any\s+(?:medications?|meds|medicines?)\b`),
		regexp.MustCompile(`(?i)\b(?:takes|taking)\s+no\s+(?:medications?|meds|medicines?)\b`),
		regexp.MustCompile(`(?i)\bmedications?\s*:\s*(?:none|nil|n/?a)\b`),
	}

	medicationVerbFramed = regexp.MustCompile(`(?i)\b(?:on|taking|takes|prescribed)\s+([a-z][a-z-]{2,})\s+(\d+(?:\.\d+)?\s*(?:mg|mcg|ml)\b|(?:\d+\s*)?tablets?\b)`)
	medicationLabeled    = regexp.MustCompile(`(?i)\bmedications?\s*:\s*(.+)$`)
	medicationSplit      = regexp.MustCompile(`(?i)\s*(?:,|;|\band\b)\s*`)

	drugLexicon = regexp.MustCompile(`(?i)\b(?:methylphenidate|lisdexamfetamine|dexamfetamine|atomoxetine|guanfacine|clonidine|melatonin|risperidone|aripiprazole|sertraline|fluoxetine|escitalopram|salbutamol|montelukast|cetirizine|loratadine|ibuprofen|paracetamol|levetiracetam|lamotrigine|valproate)\b`)
)

// MedicationExtractor fills the medication list. An explicit negation
// anywhere in the bucket beats every positive mention.
type MedicationExtractor struct {
	fieldID string
}

func NewMedicationExtractor() *MedicationExtractor {
	return &MedicationExtractor{fieldID: "medications"}
}

func (e *MedicationExtractor) Name() string { return "medication" }

func (e *MedicationExtractor) Applies(sectionID string) bool {
	return strings.Contains(sectionID, "medication")
}

func (e *MedicationExtractor) Extract(schema []domain.FieldSchema, turns []domain.TranscriptTurn) []Candidate {
	if !hasField(schema, e.fieldID) {
		return nil
	}

	for _, turn := range turns {
		if matchesAny(medicationNegations, turn.Text) {
			return []Candidate{candidate(e.fieldID, []string{}, medicationNegationConfidence, turn, "explicit negation")}
		}
	}

	for _, turn := range turns {
		if meds, family := matchMedications(turn.Text); len(meds) > 0 {
			return []Candidate{candidate(e.fieldID, meds, medicationConfidence, turn, family)}
		}
	}
	return nil
}

func matchMedications(text string) ([]string, string) {
	if matches := medicationVerbFramed.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		meds := make([]string, 0, len(matches))
		for _, m := range matches {
			dose := strings.Join(strings.Fields(m[2]), "")
			meds = appendUnique(meds, m[1]+" "+dose)
		}
		return meds, "verb-framed mention"
	}

	if m := medicationLabeled.FindStringSubmatch(text); m != nil {
		meds := make([]string, 0)
		for _, part := range medicationSplit.Split(m[1], -1) {
			part = strings.Trim(strings.TrimSpace(part), ".")
			if part != "" {
				meds = appendUnique(meds, part)
			}
		}
		if len(meds) > 0 {
			return meds, "labeled medication line"
		}
	}

	if names := drugLexicon.FindAllString(text, -1); len(names) > 0 {
		meds := make([]string, 0, len(names))
		for _, name := range names {
			meds = appendUnique(meds, strings.ToLower(name))
		}
		return meds, "drug lexicon match"
	}
	return nil, ""
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if strings.EqualFold(existing, v) {
			return values
		}
	}
	return append(values, v)
}
