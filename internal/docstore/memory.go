package docstore

import (
	"context"
	"sync"
)

// Memory is an in-memory document store used in tests and database-less runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewMemory(docs ...*Document) *Memory {
	m := &Memory{docs: make(map[string]*Document, len(docs))}
	for _, doc := range docs {
		m.docs[doc.ID] = doc
	}
	return m
}

func (m *Memory) Put(doc *Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
}

func (m *Memory) GetDocument(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *doc
	return &copied, nil
}
