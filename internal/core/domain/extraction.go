package domain

// ExtractedField is a candidate value for one field. Value holds a string,
// []string or bool depending on the target field type.
type ExtractedField struct {
	Value      any      `json:"value"`
	Confidence float64  `json:"confidence"`
	Evidence   Evidence `json:"evidence"`
	Notes      string   `json:"notes,omitempty"`
	Extractor  string   `json:"extractor,omitempty"`
}

type SectionExtraction struct {
	SectionID string                    `json:"section_id"`
	Fields    map[string]ExtractedField `json:"fields"`
}

type SectionResult struct {
	Fields map[string]ExtractedField `json:"fields"`
}

type StageResult struct {
	Sections              map[string]SectionResult `json:"sections"`
	CompletionReady       bool                     `json:"completion_ready"`
	MissingRequiredFields []string                 `json:"missing_required_fields"`
}

// HasField reports whether any section of the stage carries fieldID.
func (r StageResult) HasField(fieldID string) bool {
	for _, section := range r.Sections {
		if _, ok := section.Fields[fieldID]; ok {
			return true
		}
	}
	return false
}

// Field returns the first candidate for fieldID in section id order.
func (r StageResult) Field(fieldID string) (ExtractedField, bool) {
	for _, sectionID := range SortedKeys(r.Sections) {
		if field, ok := r.Sections[sectionID].Fields[fieldID]; ok {
			return field, true
		}
	}
	return ExtractedField{}, false
}

type ConflictCandidate struct {
	SectionID string         `json:"section_id"`
	Field     ExtractedField `json:"field"`
}

// FieldConflict records one field extracted in more than one section.
type FieldConflict struct {
	Stage         Stage               `json:"stage"`
	FieldID       string              `json:"field_id"`
	Candidates    []ConflictCandidate `json:"candidates"`
	WinnerSection string              `json:"winner_section"`
	Policy        MergePolicy         `json:"policy"`
	Resolved      bool                `json:"resolved"`
}

type OrchestrationResult struct {
	Stages          map[Stage]StageResult `json:"stages"`
	GlobalConflicts []FieldConflict       `json:"global_conflicts"`
}

// MergePolicy decides between two candidates for the same field.
type MergePolicy string

const (
	MergeFirstMatch        MergePolicy = "first_match"
	MergeHighestConfidence MergePolicy = "highest_confidence"
)

func (p MergePolicy) Valid() bool {
	return p == MergeFirstMatch || p == MergeHighestConfidence
}
