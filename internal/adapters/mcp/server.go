// Package mcp exposes transcript processing to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/intake"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
)

const schemaResourceURI = "intake://schema"

var speakerHelp = fmt.Sprintf("Speaker label for every line (default: %s)", intake.DefaultSpeaker)

type ServerConfig struct {
	Processor ports.TranscriptProcessor
	Schema    ports.SchemaProvider
	Version   string
}

func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Intake Assistant",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerProcessTool(s, cfg.Processor)
	registerListFieldsTool(s, cfg.Schema)
	registerSchemaResource(s, cfg.Schema)
	return s
}

// ServeStdio blocks until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerProcessTool(s *server.MCPServer, processor ports.TranscriptProcessor) {
	tool := mcp.NewTool("process_transcript",
		mcp.WithDescription("Extract intake form values from a session transcript. Returns per-stage extractions, the apply plan with confidence gating, and stage completion gates."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Transcript text, one utterance per line."),
		),
		mcp.WithString("default_speaker",
			mcp.Description(speakerHelp),
		),
		mcp.WithString("form_state",
			mcp.Description("Current case document as a JSON object keyed by dotted path, e.g. {\"stage1.clientName\":\"Ava\"}"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		processReq := ports.ProcessRequest{
			Text:           text,
			DefaultSpeaker: req.GetString("default_speaker", ""),
		}
		if raw := strings.TrimSpace(req.GetString("form_state", "")); raw != "" {
			if err := json.Unmarshal([]byte(raw), &processReq.FormState); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("form_state must be a JSON object: %v", err)), nil
			}
		}

		result, err := processor.ProcessTranscript(ctx, processReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("process error: %v", err)), nil
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal process result: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerListFieldsTool(s *server.MCPServer, schema ports.SchemaProvider) {
	tool := mcp.NewTool("list_fields",
		mcp.WithDescription("List form fields, optionally for one stage."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("stage",
			mcp.Description("Stage filter"),
			mcp.Enum(string(domain.Stage1), string(domain.Stage2), string(domain.Stage3)),
		),
	)

	s.AddTool(tool, func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stage := domain.Stage(req.GetString("stage", ""))
		if stage != "" && !stage.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown stage %q", stage)), nil
		}

		fields := schema.Fields()
		if stage != "" {
			fields = schema.StageFields(stage)
		}
		data, err := json.MarshalIndent(fields, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal fields: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSchemaResource(s *server.MCPServer, schema ports.SchemaProvider) {
	resource := mcp.NewResource(
		schemaResourceURI,
		"Intake Form Schema",
		mcp.WithResourceDescription("Flattened field schema of the active intake form."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		fields := schema.Fields()
		payload := map[string]any{
			"fields": fields,
			"count":  len(fields),
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal schema resource: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
