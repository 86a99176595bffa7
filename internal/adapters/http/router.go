package httpadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/kirillkom/intake-assistant/internal/config"
	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/intake-assistant/internal/observability/metrics"
)

const (
	serviceName     = "intake-api"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RunService is the read side of asynchronous runs.
type RunService interface {
	ports.RunReader
	ports.RunReporter
}

type Router struct {
	cfg       config.Config
	processor ports.TranscriptProcessor
	submitter ports.RunSubmitter
	runs      RunService
	schema    ports.SchemaProvider
	validator *requestValidator
	logger    *slog.Logger
	metrics   *metrics.HTTPServerMetrics
	breakers  func() []resilience.OperationState
}

type RouterOption func(*Router)

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

// WithBreakerStates exposes circuit breaker states on /healthz.
func WithBreakerStates(states func() []resilience.OperationState) RouterOption {
	return func(rt *Router) {
		rt.breakers = states
	}
}

func NewRouter(
	cfg config.Config,
	processor ports.TranscriptProcessor,
	submitter ports.RunSubmitter,
	runs RunService,
	schema ports.SchemaProvider,
	opts ...RouterOption,
) *Router {
	validator, err := newRequestValidator()
	if err != nil {
		panic(fmt.Sprintf("embedded openapi document: %v", err))
	}
	rt := &Router{
		cfg:       cfg,
		processor: processor,
		submitter: submitter,
		runs:      runs,
		schema:    schema,
		validator: validator,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPIDocument)
	mux.HandleFunc("GET /v1/schema", rt.getSchema)
	mux.HandleFunc("POST /v1/transcripts/process", rt.processTranscript)
	mux.HandleFunc("POST /v1/transcripts", rt.submitTranscript)
	mux.HandleFunc("GET /v1/runs/{id}", rt.getRun)
	mux.HandleFunc("GET /v1/runs/{id}/report.xlsx", rt.getRunReport)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = bearerAuthMiddleware(rt.cfg.APIAuthToken, handler)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	if rt.cfg.APIRateLimitRPS > 0 {
		burst := max(rt.cfg.APIRateLimitBurst, 1)
		handler = rateLimitMiddleware(rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst), handler)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return otelhttp.NewHandler(handler, serviceName)
}

type healthResponse struct {
	Status   string                      `json:"status"`
	Breakers []resilience.OperationState `json:"breakers,omitempty"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if rt.breakers != nil {
		resp.Breakers = rt.breakers()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) getSchema(w http.ResponseWriter, r *http.Request) {
	stage := domain.Stage(r.URL.Query().Get("stage"))
	if stage == "" {
		writeJSON(w, http.StatusOK, map[string]any{"fields": rt.schema.Fields()})
		return
	}
	if !stage.Valid() {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "get schema", fmt.Errorf("unknown stage %q", stage)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": rt.schema.StageFields(stage)})
}

func (rt *Router) processTranscript(w http.ResponseWriter, r *http.Request) {
	raw, err := rt.readBody(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.validator.validate(schemaProcessRequest, raw); err != nil {
		rt.writeError(w, r, err)
		return
	}

	var req ports.ProcessRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode request", err))
		return
	}

	result, err := rt.processor.ProcessTranscript(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type submitTranscriptRequest struct {
	Text           string `json:"text"`
	DefaultSpeaker string `json:"default_speaker"`
	Filename       string `json:"filename"`
}

func (rt *Router) submitTranscript(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		rt.submitTranscriptFile(w, r)
		return
	}

	raw, err := rt.readBody(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.validator.validate(schemaSubmitRequest, raw); err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req submitTranscriptRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode request", err))
		return
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = "transcript.txt"
	}

	run, err := rt.submitter.Submit(r.Context(), filename, "text/plain", req.DefaultSpeaker, strings.NewReader(req.Text))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) submitTranscriptFile(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.APIMaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxRequestBodyBytes)
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "multipart field 'file' is required",
			RequestID: requestIDFromContext(r.Context()),
		})
		return
	}
	defer file.Close()

	mimeType, err := transcriptMimeType(fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	run, err := rt.submitter.Submit(r.Context(), fileHeader.Filename, mimeType, r.FormValue("default_speaker"), file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func transcriptMimeType(filename, declared string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf", nil
	case ".txt":
		if declared == "" || declared == "application/octet-stream" {
			return "text/plain", nil
		}
		return declared, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "submit transcript", fmt.Errorf("unsupported file %q: only .txt and .pdf transcripts are accepted", filename))
	}
}

func (rt *Router) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := runIDFromPath(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	run, err := rt.runs.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) getRunReport(w http.ResponseWriter, r *http.Request) {
	id, err := runIDFromPath(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	// Buffer the workbook so export errors still map to a status code.
	var buf bytes.Buffer
	if err := rt.runs.ExportReport(r.Context(), id, &buf); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func runIDFromPath(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind run id", err)
	}
	if strings.TrimSpace(id) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind run id", fmt.Errorf("run id is required"))
	}
	return id, nil
}

func (rt *Router) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := r.Body
	if rt.cfg.APIMaxRequestBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxRequestBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read request body", fmt.Errorf("request body is empty"))
	}
	return raw, nil
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
