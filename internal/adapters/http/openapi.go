package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

//go:embed openapi.yaml
var openAPISpec []byte

const (
	schemaProcessRequest = "ProcessTranscriptRequest"
	schemaSubmitRequest  = "SubmitTranscriptRequest"
)

// requestValidator checks JSON bodies against component schemas of the
// embedded OpenAPI document.
type requestValidator struct {
	doc *openapi3.T
}

func newRequestValidator() (*requestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return &requestValidator{doc: doc}, nil
}

func (v *requestValidator) validate(schemaName string, raw []byte) error {
	ref, ok := v.doc.Components.Schemas[schemaName]
	if !ok || ref.Value == nil {
		return fmt.Errorf("openapi schema %q is not declared", schemaName)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	if err := ref.Value.VisitJSON(decoded, openapi3.MultiErrors()); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate request", err)
	}
	return nil
}
