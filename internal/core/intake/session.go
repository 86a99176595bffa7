package intake

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

const (
	consentConfidence = 0.9
	timeConfidence    = 0.85
)

var (
	consentNegation = regexp.MustCompile(`(?i)\bconsent\s+(?:was\s+|is\s+|has\s+been\s+)?(?:not\s+(?:given|obtained|provided|signed)|declined|refused|withdrawn)\b|\b(?:did\s+not|didn't|does\s+not)\s+(?:give\s+)?consent\b`)
	consentGiven    = regexp.MustCompile(`(?i)\bconsent\s+(?:was\s+|is\s+|has\s+been\s+)?(?:given|obtained|provided|signed)\b|\b(?:gave|provided|signed)\s+(?:written\s+|verbal\s+|informed\s+)?consent\b`)
	sessionTime     = regexp.MustCompile(`(?i)\b(?:at|time\s*:?|started\s+at)\s*(\d{1,2}):(\d{2})\b`)
)

// SessionExtractor fills consent and session time fields.
type SessionExtractor struct {
	consentField string
	timeField    string
}

func NewSessionExtractor() *SessionExtractor {
	return &SessionExtractor{consentField: "consentGiven", timeField: "assessmentTime"}
}

func (e *SessionExtractor) Name() string { return "session" }

func (e *SessionExtractor) Applies(sectionID string) bool {
	return strings.Contains(sectionID, "session")
}

func (e *SessionExtractor) Extract(schema []domain.FieldSchema, turns []domain.TranscriptTurn) []Candidate {
	out := make([]Candidate, 0, 2)
	if hasField(schema, e.consentField) {
		if c, ok := e.consent(turns); ok {
			out = append(out, c)
		}
	}
	if hasField(schema, e.timeField) {
		for _, turn := range turns {
			if value, ok := matchSessionTime(turn.Text); ok {
				out = append(out, candidate(e.timeField, value, timeConfidence, turn, "session time"))
				break
			}
		}
	}
	return out
}

func (e *SessionExtractor) consent(turns []domain.TranscriptTurn) (Candidate, bool) {
	for _, turn := range turns {
		if consentNegation.MatchString(turn.Text) {
			return candidate(e.consentField, false, consentConfidence, turn, "consent declined"), true
		}
	}
	for _, turn := range turns {
		if consentGiven.MatchString(turn.Text) {
			return candidate(e.consentField, true, consentConfidence, turn, "consent given"), true
		}
	}
	return Candidate{}, false
}

func matchSessionTime(text string) (string, bool) {
	m := sessionTime.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%02d:%s", hour, m[2]), true
}
