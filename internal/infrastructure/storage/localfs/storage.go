package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

const defaultBasePath = "./data/transcripts"

// Storage archives submitted transcripts as flat files under basePath.
// Writes go to a temp file first so a reader never sees a partial transcript.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if strings.TrimSpace(basePath) == "" {
		basePath = defaultBasePath
	}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript archive %s: %w", basePath, err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: data}); err != nil {
		return fmt.Errorf("write transcript %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync transcript %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close transcript %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("commit transcript %s: %w", key, err)
	}
	committed = true
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open transcript", fmt.Errorf("transcript %s is not archived", key))
	}
	if err != nil {
		return nil, fmt.Errorf("open transcript %s: %w", key, err)
	}
	return f, nil
}

// Keys are flat names; anything that could escape basePath is rejected.
func (s *Storage) resolve(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.HasPrefix(key, ".upload-") || strings.ContainsAny(key, `/\`) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve storage key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.basePath, key), nil
}

// contextReader stops a long upload copy once the request is gone.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
