// Package xlsx renders processing results into a clinician review workbook.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

const (
	SheetApplyPlan = "Apply Plan"
	SheetGates     = "Stage Gates"
	SheetConflicts = "Conflicts"
	SheetFormState = "Form State"

	maxQuoteLen = 200
)

type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exporter{logger: logger}
}

func (e *Exporter) Export(_ context.Context, run *domain.ProcessingRun, w io.Writer) error {
	if run == nil || run.Result == nil {
		return domain.WrapError(domain.ErrRunNotComplete, "export workbook", fmt.Errorf("run has no result"))
	}
	if err := e.Write(*run.Result, w); err != nil {
		return err
	}
	e.logger.Info("report_exported", "run_id", run.ID, "plan_entries", len(run.Result.Validation.ApplyPlan))
	return nil
}

// Write renders one workbook with a sheet per review concern.
func (e *Exporter) Write(result domain.ProcessResult, w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// The default sheet is renamed rather than left empty.
	if err := f.SetSheetName("Sheet1", SheetApplyPlan); err != nil {
		return fmt.Errorf("xlsx rename sheet: %w", err)
	}
	for _, sheet := range []string{SheetGates, SheetConflicts, SheetFormState} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx new sheet %s: %w", sheet, err)
		}
	}

	writers := []func(*excelize.File, domain.ProcessResult) error{
		writeApplyPlan,
		writeGates,
		writeConflicts,
		writeFormState,
	}
	for _, write := range writers {
		if err := write(f, result); err != nil {
			return err
		}
	}

	index, err := f.GetSheetIndex(SheetApplyPlan)
	if err != nil {
		return fmt.Errorf("xlsx sheet index: %w", err)
	}
	f.SetActiveSheet(index)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeApplyPlan(f *excelize.File, result domain.ProcessResult) error {
	rows := make([][]any, 0, len(result.Validation.ApplyPlan))
	for _, entry := range result.Validation.ApplyPlan {
		evidence := evidenceFor(result.Orchestration, entry)
		rows = append(rows, []any{
			string(entry.Stage),
			entry.SectionID,
			entry.FieldID,
			string(entry.Status),
			entry.Confidence,
			formatValue(entry.Value),
			entry.Reason,
			evidence.Speaker,
			truncate(evidence.Quote, maxQuoteLen),
		})
	}
	headers := []string{"Stage", "Section", "Field", "Status", "Confidence", "Value", "Reason", "Speaker", "Evidence"}
	if err := writeTable(f, SheetApplyPlan, headers, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(SheetApplyPlan, "A", "D", 16)
	_ = f.SetColWidth(SheetApplyPlan, "F", "G", 32)
	_ = f.SetColWidth(SheetApplyPlan, "I", "I", 60)
	return nil
}

func writeGates(f *excelize.File, result domain.ProcessResult) error {
	rows := make([][]any, 0, len(domain.Stages()))
	for _, stage := range domain.Stages() {
		gate := result.Validation.StageGates[stage]
		live, hasLive := result.LiveGates[stage]
		liveReady := ""
		if hasLive {
			liveReady = yesNo(live.CompletionReady)
		}
		rows = append(rows, []any{
			string(stage),
			yesNo(gate.CompletionReady),
			strings.Join(gate.MissingRequiredFields, ", "),
			strings.Join(gate.ValidationErrors, "; "),
			strings.Join(gate.RuleViolations, "; "),
			liveReady,
			strings.Join(live.ProvisionalFields, ", "),
		})
	}
	headers := []string{"Stage", "Ready", "Missing", "Validation Errors", "Rule Violations", "Form Ready", "Provisional"}
	if err := writeTable(f, SheetGates, headers, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(SheetGates, "C", "E", 40)
	return nil
}

func writeConflicts(f *excelize.File, result domain.ProcessResult) error {
	rows := make([][]any, 0, len(result.Orchestration.GlobalConflicts))
	for _, conflict := range result.Orchestration.GlobalConflicts {
		candidates := make([]string, 0, len(conflict.Candidates))
		for _, c := range conflict.Candidates {
			candidates = append(candidates, fmt.Sprintf("%s=%s (%.2f)", c.SectionID, formatValue(c.Field.Value), c.Field.Confidence))
		}
		rows = append(rows, []any{
			string(conflict.Stage),
			conflict.FieldID,
			conflict.WinnerSection,
			string(conflict.Policy),
			yesNo(conflict.Resolved),
			strings.Join(candidates, "; "),
		})
	}
	return writeTable(f, SheetConflicts, []string{"Stage", "Field", "Winner", "Policy", "Resolved", "Candidates"}, rows)
}

func writeFormState(f *excelize.File, result domain.ProcessResult) error {
	paths := make([]string, 0, len(result.FormState))
	for path := range result.FormState {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	rows := make([][]any, 0, len(paths))
	for _, path := range paths {
		rows = append(rows, []any{path, formatValue(result.FormState[path])})
	}
	return writeTable(f, SheetFormState, []string{"Path", "Value"}, rows)
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header %s: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %s: %w", sheet, err)
		}
	}
	return nil
}

func evidenceFor(orch domain.OrchestrationResult, entry domain.ApplyPlanEntry) domain.Evidence {
	section, ok := orch.Stages[entry.Stage].Sections[entry.SectionID]
	if !ok {
		return domain.Evidence{}
	}
	return section.Fields[entry.FieldID].Evidence
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return yesNo(value)
	case []string:
		return strings.Join(value, ", ")
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(value)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
