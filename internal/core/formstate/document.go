// Package formstate applies a validated extraction to the live case document.
package formstate

import (
	"slices"
	"strings"
	"sync"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// Document is the in-progress case document owned by the caller.
type Document interface {
	Get(key domain.FieldKey) (any, bool)
	Set(key domain.FieldKey, value any)
	Keys() []domain.FieldKey
}

// MemoryDocument is a Document held in memory and addressed by dotted paths
// when exported.
type MemoryDocument struct {
	mu     sync.RWMutex
	values map[domain.FieldKey]any
}

func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{values: make(map[domain.FieldKey]any)}
}

func (d *MemoryDocument) Get(key domain.FieldKey) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

func (d *MemoryDocument) Set(key domain.FieldKey, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[key] = value
}

func (d *MemoryDocument) Keys() []domain.FieldKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]domain.FieldKey, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b domain.FieldKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// Snapshot exports the document as "stage.field" -> value.
func (d *MemoryDocument) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k.String()] = v
	}
	return out
}

// LoadSnapshot replaces the document with values keyed by dotted paths.
// Nothing is loaded when any path is malformed.
func (d *MemoryDocument) LoadSnapshot(snapshot map[string]any) error {
	values := make(map[domain.FieldKey]any, len(snapshot))
	for path, v := range snapshot {
		key, err := domain.ParseFieldKey(path)
		if err != nil {
			return err
		}
		values[key] = v
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.values = values
	return nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
