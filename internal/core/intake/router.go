package intake

import (
	"regexp"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// GeneralSection receives every turn.
const GeneralSection = "general"

// RouteRule sends a turn to SectionID when any pattern matches.
type RouteRule struct {
	SectionID string
	Patterns  []*regexp.Regexp
}

func (r RouteRule) Matches(text string) bool {
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Router fans turns out into topic buckets. Rule order is routing order.
type Router struct {
	rules []RouteRule
}

func NewRouter(rules ...RouteRule) *Router {
	if len(rules) == 0 {
		rules = DefaultRouteRules()
	}
	return &Router{rules: rules}
}

// Sections lists bucket ids in routing order, general last.
func (r *Router) Sections() []string {
	out := make([]string, 0, len(r.rules)+1)
	for _, rule := range r.rules {
		out = append(out, rule.SectionID)
	}
	return append(out, GeneralSection)
}

// Route appends each turn to every matching bucket and to general.
func (r *Router) Route(turns []domain.TranscriptTurn) map[string][]domain.TranscriptTurn {
	buckets := make(map[string][]domain.TranscriptTurn)
	for _, turn := range turns {
		for _, rule := range r.rules {
			if rule.Matches(turn.Text) {
				buckets[rule.SectionID] = append(buckets[rule.SectionID], turn)
			}
		}
		buckets[GeneralSection] = append(buckets[GeneralSection], turn)
	}
	return buckets
}

func DefaultRouteRules() []RouteRule {
	return []RouteRule{
		{
			SectionID: "medications",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:medications?|medicines?|meds|tablets?|prescribed|prescription|dosage|doses?)\b`),
				regexp.MustCompile(`(?i)\b(?:taking|takes|taken)\b`),
				regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:mg|mcg|ml)\b`),
				drugLexicon,
			},
		},
		{
			SectionID: "allergies",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\ballerg\w*`),
				regexp.MustCompile(`(?i)\b(?:nkda|intoleran\w*|anaphyla\w*)\b`),
			},
		},
		{
			SectionID: "medical_history",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:medical\s+history|history\s+of|diagnos\w*|conditions?|illness(?:es)?)\b`),
				regexp.MustCompile(`(?i)\b(?:asthma|epilepsy|seizures?|surgery|operation|hospitali[sz]\w*|premature)\b`),
			},
		},
		{
			SectionID: "family_history",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:family\s+history|runs\s+in\s+the\s+family)\b`),
				regexp.MustCompile(`(?i)\b(?:mother|father|mum|mom|dad|parents?|brothers?|sisters?|siblings?|grandmother|grandfather|grandparents?|aunt|uncle|cousins?)\b`),
			},
		},
		{
			SectionID: "client_details",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:age|aged|years?\s+old|y\.?o\.?|born|dob|date\s+of\s+birth|name|guardian)\b`),
				regexp.MustCompile(`(?i)\b(?:school|class|grade|year)\b`),
				regexp.MustCompile(`(?i)\b(?:right|left)[\s-]?handed\b|\bambidextrous\b`),
				regexp.MustCompile(`(?i)\bassess(?:ment|ed)\s+(?:date|on)\b`),
			},
		},
		{
			SectionID: "referral",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:referr\w*|concerns?|presenting|reason\s+for)\b`),
			},
		},
		{
			SectionID: "session_details",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:consent\w*|session|appointment)\b`),
				regexp.MustCompile(`(?i)\b(?:at|time\s*:?)\s*\d{1,2}:\d{2}\b`),
			},
		},
	}
}
