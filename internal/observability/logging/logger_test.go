package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestJSONLoggerAddsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "intake-worker", "warn")

	logger.Info("pipeline_run", "run_id", "run-1")
	logger.Warn("worker_handler_failed", "run_id", "run-2")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if record["event"] != "worker_handler_failed" || record["service"] != "intake-worker" || record["run_id"] != "run-2" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerDebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "intakectl", "debug")

	logger.Debug("form_definition_loaded", "fields", 5)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if _, ok := record["source"]; !ok {
		t.Fatalf("expected source attribute at debug level, got %v", record)
	}
	if _, ok := record["msg"]; ok {
		t.Fatalf("message must be renamed to event, got %v", record)
	}
	ts, _ := record["time"].(string)
	if !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC timestamp, got %q", ts)
	}
}
