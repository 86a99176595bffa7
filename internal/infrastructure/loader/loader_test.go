package loader

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

type storageFake struct {
	body string
}

func (f *storageFake) Save(context.Context, string, io.Reader) error { return nil }

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestLoadPlainText(t *testing.T) {
	l := New(&storageFake{body: "\n  Age: 11 years old.\n\n"})

	text, err := l.Load(context.Background(), &domain.ProcessingRun{Filename: "intake.txt", MimeType: "text/plain"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if text != "Age: 11 years old." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestDecodeRejectsBinary(t *testing.T) {
	_, err := Decode("intake.bin", "application/octet-stream", []byte{0xff, 0xfe, 0x00})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDecodeRejectsBrokenPDF(t *testing.T) {
	_, err := Decode("intake.pdf", "application/pdf", []byte("%PDF-1.4 truncated"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIsPDF(t *testing.T) {
	cases := []struct {
		filename, mime string
		raw            string
		want           bool
	}{
		{"a.pdf", "", "", true},
		{"a.PDF", "", "", true},
		{"a.bin", "application/pdf", "", true},
		{"upload", "", "%PDF-1.7", true},
		{"a.txt", "text/plain", "hello", false},
	}
	for _, tc := range cases {
		if got := IsPDF(tc.filename, tc.mime, []byte(tc.raw)); got != tc.want {
			t.Fatalf("IsPDF(%q, %q) = %v, want %v", tc.filename, tc.mime, got, tc.want)
		}
	}
}
