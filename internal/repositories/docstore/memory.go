package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryBackend keeps the document in process. Useful for tests and local development.
type MemoryBackend struct {
	mu  sync.RWMutex
	doc Document

	// FailReplace, when set, is consulted before each Replace; a non-nil result is returned
	// instead of writing. Tests use it to simulate store outages on specific keys.
	FailReplace func(doc Document) error
}

// NewMemoryBackend returns an empty in-memory document.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{doc: Document{}}
}

// NewMemoryBackendFromJSON seeds the backend with a raw JSON document.
func NewMemoryBackendFromJSON(raw []byte) (*MemoryBackend, error) {
	doc := Document{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("docstore: decode seed document: %w", err)
		}
	}
	return &MemoryBackend{doc: doc}, nil
}

// Fetch implements Backend.
func (m *MemoryBackend) Fetch(context.Context) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.Clone(), nil
}

// Replace implements Backend.
func (m *MemoryBackend) Replace(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReplace != nil {
		if err := m.FailReplace(doc); err != nil {
			return err
		}
	}
	m.doc = doc.Clone()
	return nil
}

// Ping implements Pinger.
func (m *MemoryBackend) Ping(context.Context) error { return nil }
