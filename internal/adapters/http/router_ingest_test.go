package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/intake-assistant/internal/config"
	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/resilience"
)

type processorFake struct {
	req    ports.ProcessRequest
	calls  int
	result *domain.ProcessResult
	err    error
}

func (f *processorFake) ProcessTranscript(_ context.Context, req ports.ProcessRequest) (*domain.ProcessResult, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.ProcessResult{Turns: 1}, nil
}

type submitterFake struct {
	filename string
	mimeType string
	speaker  string
	body     string
	err      error
}

func (f *submitterFake) Submit(_ context.Context, filename, mimeType, defaultSpeaker string, body io.Reader) (*domain.ProcessingRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.filename, f.mimeType, f.speaker, f.body = filename, mimeType, defaultSpeaker, string(raw)

	now := time.Now().UTC()
	return &domain.ProcessingRun{
		ID:             "run-1",
		Filename:       filename,
		MimeType:       mimeType,
		StoragePath:    "run-1_" + filename,
		DefaultSpeaker: defaultSpeaker,
		Status:         domain.RunQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

type runServiceFake struct {
	getErr    error
	exportErr error
}

func (f runServiceFake) GetByID(_ context.Context, id string) (*domain.ProcessingRun, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.ProcessingRun{ID: id, Filename: "a.txt", Status: domain.RunCompleted}, nil
}

func (f runServiceFake) ExportReport(_ context.Context, _ string, w io.Writer) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	_, err := w.Write([]byte("PK-workbook"))
	return err
}

type schemaFake struct{}

func (schemaFake) Fields() []domain.FieldSchema {
	return []domain.FieldSchema{
		{ID: "clientName", Stage: domain.Stage1, Section: "client_details", Type: domain.FieldText},
		{ID: "allergies", Stage: domain.Stage2, Section: "allergies", Type: domain.FieldText},
	}
}

func (f schemaFake) StageFields(stage domain.Stage) []domain.FieldSchema {
	out := make([]domain.FieldSchema, 0)
	for _, field := range f.Fields() {
		if field.Stage == stage {
			out = append(out, field)
		}
	}
	return out
}

type testDeps struct {
	processor *processorFake
	submitter *submitterFake
	runs      runServiceFake
}

func newTestHandler(cfg config.Config, opts ...RouterOption) http.Handler {
	return newTestHandlerWith(cfg, testDeps{}, opts...)
}

func newTestHandlerWith(cfg config.Config, deps testDeps, opts ...RouterOption) http.Handler {
	if deps.processor == nil {
		deps.processor = &processorFake{}
	}
	if deps.submitter == nil {
		deps.submitter = &submitterFake{}
	}
	return NewRouter(cfg, deps.processor, deps.submitter, deps.runs, schemaFake{}, opts...).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, WithBreakerStates(func() []resilience.OperationState {
		return []resilience.OperationState{{Operation: "nats.publish", State: "closed"}}
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body healthResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" || len(body.Breakers) != 1 || body.Breakers[0].State != "closed" {
		t.Fatalf("unexpected health response %+v", body)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestOpenAPIDocumentServed(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "ProcessTranscriptRequest") {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	var body struct {
		Fields []domain.FieldSchema `json:"fields"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Fields) != 2 || body.Fields[0].ID != "clientName" {
		t.Fatalf("unexpected schema %+v", body.Fields)
	}
}

func TestSchemaEndpointFiltersStage(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/schema?stage=stage2", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	var body struct {
		Fields []domain.FieldSchema `json:"fields"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Fields) != 1 || body.Fields[0].ID != "allergies" {
		t.Fatalf("unexpected stage2 schema %+v", body.Fields)
	}

	bad := httptest.NewRecorder()
	handler.ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/v1/schema?stage=stage9", nil))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown stage, got %d", bad.Code)
	}
}

func TestProcessTranscriptSuccess(t *testing.T) {
	processor := &processorFake{}
	handler := newTestHandlerWith(config.Config{}, testDeps{processor: processor})

	payload := `{"text":"Age: 11 years old.","default_speaker":"parent","form_state":{"stage1.clientName":"Ava"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts/process", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("expected request id to be echoed")
	}
	if processor.req.Text != "Age: 11 years old." || processor.req.DefaultSpeaker != "parent" {
		t.Fatalf("unexpected process request %+v", processor.req)
	}
	if processor.req.FormState["stage1.clientName"] != "Ava" {
		t.Fatalf("form state not forwarded: %+v", processor.req.FormState)
	}
}

func TestProcessTranscriptAcceptsTurns(t *testing.T) {
	processor := &processorFake{}
	handler := newTestHandlerWith(config.Config{}, testDeps{processor: processor})

	payload := `{"turns":[{"speaker":"parent","start_ms":0,"end_ms":900,"text":"NKDA"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts/process", strings.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(processor.req.Turns) != 1 || processor.req.Turns[0].EndMS != 900 {
		t.Fatalf("unexpected turns %+v", processor.req.Turns)
	}
}

func TestSubmitTranscriptJSON(t *testing.T) {
	submitter := &submitterFake{}
	handler := newTestHandlerWith(config.Config{}, testDeps{submitter: submitter})

	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts", strings.NewReader(`{"text":"No known drug allergies.","default_speaker":"parent"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if submitter.filename != "transcript.txt" || submitter.mimeType != "text/plain" || submitter.speaker != "parent" {
		t.Fatalf("unexpected submission %+v", submitter)
	}
	var run map[string]any
	if err := json.NewDecoder(res.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run["id"] != "run-1" || run["status"] != "queued" {
		t.Fatalf("unexpected response: %+v", run)
	}
}

func TestSubmitTranscriptAcceptsEmptyText(t *testing.T) {
	submitter := &submitterFake{}
	handler := newTestHandlerWith(config.Config{}, testDeps{submitter: submitter})

	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts", strings.NewReader(`{"text":""}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if submitter.filename != "transcript.txt" || submitter.body != "" {
		t.Fatalf("unexpected submission %+v", submitter)
	}
}

func TestSubmitTranscriptFile(t *testing.T) {
	submitter := &submitterFake{}
	handler := newTestHandlerWith(config.Config{}, testDeps{submitter: submitter})

	req := newMultipartRequest(t, "session.txt", "Age: 11 years old.", "clinician")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if submitter.filename != "session.txt" || submitter.body != "Age: 11 years old." || submitter.speaker != "clinician" {
		t.Fatalf("unexpected submission %+v", submitter)
	}
	if submitter.mimeType != "text/plain" {
		t.Fatalf("expected text/plain, got %q", submitter.mimeType)
	}
}

func TestSubmitTranscriptRejectsUnsupportedFile(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := newMultipartRequest(t, "session.docx", "binary", "")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitTranscriptMissingMultipartField(t *testing.T) {
	handler := newTestHandler(config.Config{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("default_speaker", "parent"); err != nil {
		t.Fatalf("WriteField() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetRunReportReturnsWorkbook(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/report.xlsx", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "run-run-1.xlsx") {
		t.Fatalf("unexpected disposition %q", res.Header().Get("Content-Disposition"))
	}
	if res.Body.String() != "PK-workbook" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestGetRunByID(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-7", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	var run domain.ProcessingRun
	if err := json.NewDecoder(res.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Code != http.StatusOK || run.ID != "run-7" {
		t.Fatalf("unexpected response %d %+v", res.Code, run)
	}
}

func newMultipartRequest(t *testing.T, filename, content, speaker string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if speaker != "" {
		if err := writer.WriteField("default_speaker", speaker); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
