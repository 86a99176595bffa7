package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
)

// Loader reads an archived transcript back as plain text. Plain text and
// PDF exports are supported.
type Loader struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Loader {
	return &Loader{storage: storage}
}

func (l *Loader) Load(ctx context.Context, run *domain.ProcessingRun) (string, error) {
	reader, err := l.storage.Open(ctx, run.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open transcript: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return Decode(run.Filename, run.MimeType, raw)
}

// Decode turns raw upload bytes into transcript text.
func Decode(filename, mimeType string, raw []byte) (string, error) {
	if IsPDF(filename, mimeType, raw) {
		return pdfText(raw)
	}
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode transcript", fmt.Errorf("unsupported binary format: %s", filename))
	}
	return strings.TrimSpace(string(raw)), nil
}

func IsPDF(filename, mimeType string, raw []byte) bool {
	if mimeType == "application/pdf" || strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(raw, []byte("%PDF-"))
}

func pdfText(raw []byte) (text string, err error) {
	// The pdf package panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", domain.WrapError(domain.ErrInvalidInput, "decode pdf", fmt.Errorf("malformed pdf: %v", rec))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode pdf", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf text", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
