package intake

import (
	"slices"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// prefer reports whether a beats b under the highest-confidence policy:
// higher confidence first, then the later evidence end time.
func prefer(a, b domain.ExtractedField) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Evidence.End() > b.Evidence.End()
}

// collectConflicts finds fields present in more than one section of a stage.
// Candidates and winners follow sectionOrder so the result is deterministic.
func collectConflicts(result domain.OrchestrationResult, sectionOrder []string) []domain.FieldConflict {
	conflicts := make([]domain.FieldConflict, 0)
	for _, stage := range domain.Stages() {
		stageResult := result.Stages[stage]
		sections := orderedSections(stageResult.Sections, sectionOrder)

		seen := make(map[string][]domain.ConflictCandidate)
		fieldOrder := make([]string, 0)
		for _, sectionID := range sections {
			for _, fieldID := range domain.SortedKeys(stageResult.Sections[sectionID].Fields) {
				if _, ok := seen[fieldID]; !ok {
					fieldOrder = append(fieldOrder, fieldID)
				}
				seen[fieldID] = append(seen[fieldID], domain.ConflictCandidate{
					SectionID: sectionID,
					Field:     stageResult.Sections[sectionID].Fields[fieldID],
				})
			}
		}

		for _, fieldID := range fieldOrder {
			candidates := seen[fieldID]
			if len(candidates) < 2 {
				continue
			}
			winner := candidates[0]
			for _, c := range candidates[1:] {
				if prefer(c.Field, winner.Field) {
					winner = c
				}
			}
			conflicts = append(conflicts, domain.FieldConflict{
				Stage:         stage,
				FieldID:       fieldID,
				Candidates:    candidates,
				WinnerSection: winner.SectionID,
				Policy:        domain.MergeHighestConfidence,
			})
		}
	}
	return conflicts
}

// resolveConflicts drops every losing candidate from its section.
func resolveConflicts(result *domain.OrchestrationResult, conflicts []domain.FieldConflict) {
	for i := range conflicts {
		c := &conflicts[i]
		stageResult := result.Stages[c.Stage]
		for _, candidate := range c.Candidates {
			if candidate.SectionID == c.WinnerSection {
				continue
			}
			section := stageResult.Sections[candidate.SectionID]
			delete(section.Fields, c.FieldID)
			if len(section.Fields) == 0 {
				delete(stageResult.Sections, candidate.SectionID)
			}
		}
		c.Resolved = true
	}
}

func orderedSections(sections map[string]domain.SectionResult, order []string) []string {
	out := make([]string, 0, len(sections))
	for _, id := range order {
		if _, ok := sections[id]; ok {
			out = append(out, id)
		}
	}
	for _, id := range domain.SortedKeys(sections) {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
