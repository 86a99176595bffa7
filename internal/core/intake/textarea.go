package intake

import (
	"regexp"
	"strings"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

const textareaConfidence = 0.75

type labelFamily struct {
	keyword  string
	patterns []*regexp.Regexp
}

// Order matters: "family history" must be tried before "medical history".
var textareaFamilies = []labelFamily{
	{
		keyword: "family history",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bfamily\s+history\b`),
			regexp.MustCompile(`(?i)\bruns\s+in\s+the\s+family\b`),
			regexp.MustCompile(`(?i)\b(?:mother|father|mum|mom|dad|brother|sister|sibling|grand(?:mother|father|parent))\s+(?:has|had|was\s+diagnosed)\b`),
		},
	},
	{
		keyword: "medical history",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmedical\s+history\b`),
			regexp.MustCompile(`(?i)\bhistory\s+of\b`),
			regexp.MustCompile(`(?i)\bdiagnos(?:ed|is)\s+(?:with|of)\b`),
		},
	},
	{
		keyword: "referral",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\breferr(?:al|ed)\b`),
			regexp.MustCompile(`(?i)\breason\s+for\s+(?:the\s+)?(?:referral|assessment|visit)\b`),
			regexp.MustCompile(`(?i)\bconcerns?\s+(?:about|regarding|with)\b`),
		},
	},
	{
		keyword: "recommend",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\brecommend(?:s|ed|ations?)?\b`),
			regexp.MustCompile(`(?i)\bsuggest(?:s|ed)?\s+(?:that|a|an)\b`),
		},
	},
}

// TextareaExtractor copies the first matching turn into free-text fields
// whose label belongs to a known keyword family.
type TextareaExtractor struct{}

func NewTextareaExtractor() *TextareaExtractor { return &TextareaExtractor{} }

func (e *TextareaExtractor) Name() string { return "textarea" }

func (e *TextareaExtractor) Applies(string) bool { return true }

func (e *TextareaExtractor) Extract(schema []domain.FieldSchema, turns []domain.TranscriptTurn) []Candidate {
	out := make([]Candidate, 0)
	for _, field := range schema {
		if field.Type != domain.FieldTextarea {
			continue
		}
		family, ok := familyForLabel(field.Label)
		if !ok {
			continue
		}
		if c, ok := firstTextareaMatch(field.ID, family, turns); ok {
			out = append(out, c)
		}
	}
	return out
}

func familyForLabel(label string) (labelFamily, bool) {
	label = strings.ToLower(label)
	for _, family := range textareaFamilies {
		if strings.Contains(label, family.keyword) {
			return family, true
		}
	}
	return labelFamily{}, false
}

func firstTextareaMatch(fieldID string, family labelFamily, turns []domain.TranscriptTurn) (Candidate, bool) {
	for _, turn := range turns {
		for _, p := range family.patterns {
			if p.MatchString(turn.Text) {
				return candidate(fieldID, turn.Text, textareaConfidence, turn, family.keyword+" keyword"), true
			}
		}
	}
	return Candidate{}, false
}
