package intake

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

const (
	ageConfidence        = 0.9
	schoolYearConfidence = 0.85
	handednessConfidence = 0.9
	nameConfidence       = 0.8
	dateConfidence       = 0.85
)

const datePattern = `(\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}|\d{1,2}\s+[A-Za-z]+\s+\d{4})`

var (
	agePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:-\s*)?(?:years?[\s-]*old|y\.?\s*o\.?)(?:\W|$)`),
		regexp.MustCompile(`(?i)\baged?\s*:?\s*(\d{1,3})\b`),
	}
	schoolYearPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(st|nd|rd|th)\s+(class|grade|year)\b`)
	handednessPattern = regexp.MustCompile(`(?i)\b(right|left)[\s-]?handed\b|\b(ambidextrous)\b`)

	clientNamePattern   = regexp.MustCompile(`\b(?i:(?:client|child|patient)(?:'s)?\s+name|name)\s*(?i:is|:)\s*([A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+){0,3})`)
	guardianNamePattern = regexp.MustCompile(`\b(?i:guardian(?:'s)?(?:\s+name)?|parent/guardian|parent(?:'s)?\s+name)\s*(?i:is|:)\s*([A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+){0,3})`)
	guardianMention     = regexp.MustCompile(`(?i)\b(?:guardian|parent|mother|father|mum|mom|dad)\b`)

	dobPattern            = regexp.MustCompile(`(?i)\b(?:dob|d\.o\.b\.?|date\s+of\s+birth)\s*(?:is|:)?\s*` + datePattern)
	assessmentDatePattern = regexp.MustCompile(`(?i)\b(?:assessment\s+date|date\s+of\s+assessment|assessed\s+on)\s*(?:is|:)?\s*` + datePattern)
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
}

// DemographicExtractor fills client detail fields. Every field keeps the
// first turn that matched it.
type DemographicExtractor struct {
	matchers []fieldMatcher
}

type fieldMatcher struct {
	fieldID    string
	confidence float64
	notes      string
	match      func(text string) (any, bool)
}

func NewDemographicExtractor() *DemographicExtractor {
	return &DemographicExtractor{
		matchers: []fieldMatcher{
			{fieldID: "age", confidence: ageConfidence, notes: "age pattern", match: matchAge},
			{fieldID: "schoolYear", confidence: schoolYearConfidence, notes: "school year pattern", match: matchSchoolYear},
			{fieldID: "handedness", confidence: handednessConfidence, notes: "handedness pattern", match: matchHandedness},
			{fieldID: "clientName", confidence: nameConfidence, notes: "name statement", match: matchClientName},
			{fieldID: "guardianName", confidence: nameConfidence, notes: "guardian statement", match: captureFirst(guardianNamePattern)},
			{fieldID: "dob", confidence: dateConfidence, notes: "date of birth", match: captureDate(dobPattern)},
			{fieldID: "assessmentDate", confidence: dateConfidence, notes: "assessment date", match: captureDate(assessmentDatePattern)},
		},
	}
}

func (e *DemographicExtractor) Name() string { return "demographic" }

func (e *DemographicExtractor) Applies(sectionID string) bool {
	return strings.Contains(sectionID, "client") || strings.Contains(sectionID, "demographic")
}

func (e *DemographicExtractor) Extract(schema []domain.FieldSchema, turns []domain.TranscriptTurn) []Candidate {
	return runMatchers(e.matchers, schema, turns)
}

func runMatchers(matchers []fieldMatcher, schema []domain.FieldSchema, turns []domain.TranscriptTurn) []Candidate {
	out := make([]Candidate, 0)
	for _, m := range matchers {
		if !hasField(schema, m.fieldID) {
			continue
		}
		for _, turn := range turns {
			if value, ok := m.match(turn.Text); ok {
				out = append(out, candidate(m.fieldID, value, m.confidence, turn, m.notes))
				break
			}
		}
	}
	return out
}

// matchAge skips turns about a parent or guardian so a relative's age never
// fills the client's.
func matchAge(text string) (any, bool) {
	if guardianMention.MatchString(text) {
		return nil, false
	}
	for _, p := range agePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || n > 120 {
			continue
		}
		return fmt.Sprintf("%d years", n), true
	}
	return nil, false
}

func matchSchoolYear(text string) (any, bool) {
	m := schoolYearPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return nil, false
	}
	return fmt.Sprintf("%d%s %s", n, ordinalSuffix(n), strings.ToLower(m[3])), true
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func matchHandedness(text string) (any, bool) {
	m := handednessPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	if m[1] != "" {
		return strings.ToLower(m[1]), true
	}
	return "ambidextrous", true
}

func matchClientName(text string) (any, bool) {
	if guardianMention.MatchString(text) {
		return nil, false
	}
	return captureFirst(clientNamePattern)(text)
}

func captureFirst(p *regexp.Regexp) func(string) (any, bool) {
	return func(text string) (any, bool) {
		m := p.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		value := strings.TrimSpace(m[1])
		return value, value != ""
	}
}

func captureDate(p *regexp.Regexp) func(string) (any, bool) {
	return func(text string) (any, bool) {
		m := p.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		return normalizeDate(m[1]), true
	}
}

// normalizeDate rewrites recognized layouts as YYYY-MM-DD and keeps anything
// else verbatim so validation can flag it.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}
