package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/formstate"
	"github.com/kirillkom/intake-assistant/internal/core/intake"
	"github.com/kirillkom/intake-assistant/internal/core/usecase"
)

func newTestServer(t *testing.T) *server.MCPServer {
	t.Helper()
	pipeline, err := intake.NewDefaultPipeline()
	if err != nil {
		t.Fatalf("NewDefaultPipeline() error = %v", err)
	}
	uc := usecase.NewProcessTranscriptUseCase(pipeline, formstate.NewIntegrator(pipeline.Rules(), ""), nil, nil).WithSource("mcp")
	return NewServer(ServerConfig{Processor: uc, Schema: uc, Version: "test"})
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, srv *server.MCPServer, method string, params map[string]any) json.RawMessage {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	raw, err := json.Marshal(srv.HandleMessage(context.Background(), msg))
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, raw)
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]any) toolResult {
	t.Helper()
	var result toolResult
	raw := call(t, srv, "tools/call", map[string]any{"name": name, "arguments": args})
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal tool result: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("no content in tool result")
	}
	return result
}

func TestProcessTranscriptTool(t *testing.T) {
	srv := newTestServer(t)

	result := callTool(t, srv, "process_transcript", map[string]any{
		"text":            "No known drug allergies.\nOn methylphenidate 10mg daily",
		"default_speaker": "parent",
		"form_state":      `{"stage1.clientName":"Ava Byrne"}`,
	})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}

	var processed domain.ProcessResult
	if err := json.Unmarshal([]byte(result.Content[0].Text), &processed); err != nil {
		t.Fatalf("parse process result: %v", err)
	}
	if processed.Turns != 2 {
		t.Fatalf("expected 2 turns, got %d", processed.Turns)
	}
	if processed.FormState["stage2.allergies"] != "NKDA" || processed.FormState["stage1.clientName"] != "Ava Byrne" {
		t.Fatalf("unexpected form state %v", processed.FormState)
	}
}

func TestProcessTranscriptToolRequiresText(t *testing.T) {
	srv := newTestServer(t)

	result := callTool(t, srv, "process_transcript", map[string]any{"default_speaker": "parent"})
	if !result.IsError || result.Content[0].Text != "text is required" {
		t.Fatalf("expected missing text error, got %+v", result)
	}
}

func TestProcessTranscriptToolRejectsBadFormState(t *testing.T) {
	srv := newTestServer(t)

	result := callTool(t, srv, "process_transcript", map[string]any{"text": "hi", "form_state": "[1,2]"})
	if !result.IsError || !strings.Contains(result.Content[0].Text, "form_state") {
		t.Fatalf("expected form_state error, got %+v", result)
	}
}

func TestListFieldsToolFiltersStage(t *testing.T) {
	srv := newTestServer(t)

	result := callTool(t, srv, "list_fields", map[string]any{"stage": "stage3"})
	var fields []domain.FieldSchema
	if err := json.Unmarshal([]byte(result.Content[0].Text), &fields); err != nil {
		t.Fatalf("parse fields: %v", err)
	}
	if len(fields) == 0 {
		t.Fatalf("expected stage3 fields")
	}
	for _, field := range fields {
		if field.Stage != domain.Stage3 {
			t.Fatalf("unexpected field %+v", field)
		}
	}
}

func TestSchemaResource(t *testing.T) {
	srv := newTestServer(t)

	raw := call(t, srv, "resources/read", map[string]any{"uri": schemaResourceURI})
	var result struct {
		Contents []mcplib.TextResourceContents `json:"contents"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal resource: %v", err)
	}
	if len(result.Contents) != 1 || result.Contents[0].URI != schemaResourceURI {
		t.Fatalf("unexpected resource contents %+v", result.Contents)
	}

	var payload struct {
		Fields []domain.FieldSchema `json:"fields"`
		Count  int                  `json:"count"`
	}
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("parse schema payload: %v", err)
	}
	if payload.Count != len(payload.Fields) || payload.Count == 0 {
		t.Fatalf("unexpected schema payload count=%d fields=%d", payload.Count, len(payload.Fields))
	}
}

func TestProcessTranscriptToolDescribesDefaultSpeaker(t *testing.T) {
	srv := newTestServer(t)

	raw := call(t, srv, "tools/list", map[string]any{})
	var listed struct {
		Tools []struct {
			Name        string `json:"name"`
			InputSchema struct {
				Properties map[string]struct {
					Description string `json:"description"`
				} `json:"properties"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &listed); err != nil {
		t.Fatalf("unmarshal tools: %v", err)
	}
	for _, tool := range listed.Tools {
		if tool.Name != "process_transcript" {
			continue
		}
		got := tool.InputSchema.Properties["default_speaker"].Description
		if got != "Speaker label for every line (default: speaker)" {
			t.Fatalf("unexpected default_speaker description %q", got)
		}
		return
	}
	t.Fatalf("process_transcript tool not listed")
}
