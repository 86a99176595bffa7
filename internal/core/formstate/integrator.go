package formstate

import (
	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/intake"
)

const DefaultSentinel = "NA"

// AppliedField is one value written from the apply plan, with its evidence.
type AppliedField struct {
	Path     string          `json:"path"`
	Value    any             `json:"value"`
	Evidence domain.Evidence `json:"evidence"`
}

type ApplySummary struct {
	Applied   []AppliedField `json:"applied"`
	Sentinels []string       `json:"sentinels"`
	Preserved []string       `json:"preserved"`
}

// Integrator writes auto_apply values into a case document and fills
// unresolved fields with a provisional sentinel.
type Integrator struct {
	required map[domain.Stage][]string
	sentinel string
}

func NewIntegrator(rules domain.BusinessRules, sentinel string) *Integrator {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return &Integrator{
		required: rules.Normalized().RequiredFieldsPerStage,
		sentinel: sentinel,
	}
}

func (i *Integrator) Sentinel() string { return i.sentinel }

// Apply mutates doc in three passes: auto_apply values, sentinels for
// entries held back as empty, then sentinels for required fields that are
// still blank. A sentinel never replaces a value already in the document.
func (i *Integrator) Apply(doc Document, orch domain.OrchestrationResult, val domain.ValidationResult) ApplySummary {
	summary := ApplySummary{
		Applied:   []AppliedField{},
		Sentinels: []string{},
		Preserved: []string{},
	}

	written := make(map[domain.FieldKey]bool)
	for _, entry := range val.ApplyPlan {
		if entry.Status != domain.StatusAutoApply {
			continue
		}
		key := entry.Key()
		doc.Set(key, entry.Value)
		written[key] = true
		summary.Applied = append(summary.Applied, AppliedField{
			Path:     key.String(),
			Value:    entry.Value,
			Evidence: evidenceFor(orch, entry),
		})
	}

	for _, entry := range val.ApplyPlan {
		if entry.Status == domain.StatusSuggestOnly && intake.IsEmptyValueReason(entry.Reason) {
			i.fillSentinel(doc, entry.Key(), written, &summary)
		}
	}

	for _, stage := range domain.Stages() {
		for _, fieldID := range i.required[stage] {
			i.fillSentinel(doc, domain.FieldKey{Stage: stage, FieldID: fieldID}, written, &summary)
		}
	}
	return summary
}

func (i *Integrator) fillSentinel(doc Document, key domain.FieldKey, written map[domain.FieldKey]bool, summary *ApplySummary) {
	if current, ok := doc.Get(key); ok && !isEmpty(current) {
		if !written[key] && current != i.sentinel {
			summary.Preserved = appendPath(summary.Preserved, key.String())
		}
		return
	}
	doc.Set(key, i.sentinel)
	summary.Sentinels = appendPath(summary.Sentinels, key.String())
}

// LiveGates re-derives stage readiness from whatever the document holds
// now, including values the user entered by hand. Sentinels satisfy the
// required check but are reported as provisional.
func (i *Integrator) LiveGates(doc Document) map[domain.Stage]domain.LiveGate {
	out := make(map[domain.Stage]domain.LiveGate, len(domain.Stages()))
	for _, stage := range domain.Stages() {
		var gate domain.LiveGate
		gate.MissingRequiredFields = intake.MissingRequired(i.required[stage], func(fieldID string) bool {
			v, ok := doc.Get(domain.FieldKey{Stage: stage, FieldID: fieldID})
			return ok && !isEmpty(v)
		})
		for _, key := range doc.Keys() {
			if key.Stage != stage {
				continue
			}
			if v, _ := doc.Get(key); v == i.sentinel {
				gate.ProvisionalFields = append(gate.ProvisionalFields, key.FieldID)
			}
		}
		gate.CompletionReady = len(gate.MissingRequiredFields) == 0
		out[stage] = gate
	}
	return out
}

func evidenceFor(orch domain.OrchestrationResult, entry domain.ApplyPlanEntry) domain.Evidence {
	section, ok := orch.Stages[entry.Stage].Sections[entry.SectionID]
	if !ok {
		return domain.Evidence{}
	}
	return section.Fields[entry.FieldID].Evidence
}

func appendPath(paths []string, path string) []string {
	for _, p := range paths {
		if p == path {
			return paths
		}
	}
	return append(paths, path)
}
