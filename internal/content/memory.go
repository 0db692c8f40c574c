package content

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oriys/folio/internal/domain"
)

// MemoryStore is a Store for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[domain.ContentType]map[string]domain.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[domain.ContentType]map[string]domain.Document)}
}

func (s *MemoryStore) List(_ context.Context, ct domain.ContentType, opts ListOptions) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*domain.Document, 0, len(s.docs[ct]))
	for _, d := range s.docs[ct] {
		if opts.PublishedOnly && !d.Published {
			continue
		}
		d := d
		docs = append(docs, &d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

func (s *MemoryStore) Get(_ context.Context, ct domain.ContentType, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[ct][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", ct, id, ErrNotFound)
	}
	return &d, nil
}

func (s *MemoryStore) Save(_ context.Context, doc *domain.Document) error {
	if err := prepare(doc, time.Now().UTC()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.docs[doc.Type]
	if !ok {
		byID = make(map[string]domain.Document)
		s.docs[doc.Type] = byID
	}
	if prev, ok := byID[doc.ID]; ok {
		doc.CreatedAt = prev.CreatedAt
	}
	stored := *doc
	stored.Data = append([]byte(nil), doc.Data...)
	byID[doc.ID] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, ct domain.ContentType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[ct][id]; !ok {
		return fmt.Errorf("%s %s: %w", ct, id, ErrNotFound)
	}
	delete(s.docs[ct], id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
