package content

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oriys/folio/internal/contentcache"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/kvstore"
	"github.com/oriys/folio/internal/policy"
)

func TestMemoryStore_SaveAssignsIDAndTimestamps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	doc := &domain.Document{Type: domain.ContentBlog, Data: json.RawMessage(`{"title":"x"}`)}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if doc.ID == "" || doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
		t.Fatalf("document not prepared: %+v", doc)
	}
	got, err := s.Get(ctx, domain.ContentBlog, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data) != `{"title":"x"}` {
		t.Fatalf("data = %s", got.Data)
	}
}

func TestMemoryStore_UpdateKeepsCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	doc := &domain.Document{Type: domain.ContentHero}
	s.Save(ctx, doc)
	created := doc.CreatedAt

	time.Sleep(2 * time.Millisecond)
	update := &domain.Document{ID: doc.ID, Type: domain.ContentHero, Data: json.RawMessage(`{"v":2}`)}
	if err := s.Save(ctx, update); err != nil {
		t.Fatal(err)
	}
	if !update.CreatedAt.Equal(created) {
		t.Fatalf("created_at changed: %v -> %v", created, update.CreatedAt)
	}
	if !update.UpdatedAt.After(created) {
		t.Fatal("updated_at should advance")
	}
}

func TestMemoryStore_RejectsInvalidType(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Save(context.Background(), &domain.Document{Type: "Bad Type"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.Get(ctx, domain.ContentBlog, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, domain.ContentBlog, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListPublishedOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Save(ctx, &domain.Document{ID: "a", Type: domain.ContentBlog, Published: true})
	s.Save(ctx, &domain.Document{ID: "b", Type: domain.ContentBlog})
	s.Save(ctx, &domain.Document{ID: "c", Type: domain.ContentSNS, Published: true})

	all, _ := s.List(ctx, domain.ContentBlog, ListOptions{})
	if len(all) != 2 {
		t.Fatalf("all = %d", len(all))
	}
	pub, _ := Published(ctx, s, domain.ContentBlog)
	if len(pub) != 1 || pub[0].ID != "a" {
		t.Fatalf("published = %+v", pub)
	}
	limited, _ := s.List(ctx, domain.ContentBlog, ListOptions{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("limited = %d", len(limited))
	}
}

func TestRegisterLoaders_WarmsPublishedCollections(t *testing.T) {
	src := NewMemoryStore()
	ctx := context.Background()
	src.Save(ctx, &domain.Document{ID: "p1", Type: domain.ContentBlog, Published: true})

	kv := kvstore.NewMemoryStore()
	defer kv.Close()
	cache := contentcache.New(kv, policy.Default())
	RegisterLoaders(cache, src)

	if got := len(cache.Loaders()); got != len(domain.ContentTypes()) {
		t.Fatalf("loaders = %d", got)
	}
	report, err := cache.WarmCache(ctx)
	if err != nil {
		t.Fatalf("WarmCache: %v", err)
	}
	if len(report.Warmed) != len(domain.ContentTypes()) {
		t.Fatalf("warmed = %v failed = %v", report.Warmed, report.Failed)
	}

	docs, hit, err := contentcache.Fetch(ctx, cache, domain.ContentBlog, "", func(ctx context.Context) ([]*domain.Document, error) {
		t.Fatal("warmed collection should be served from cache")
		return nil, nil
	})
	if err != nil || !hit {
		t.Fatalf("fetch: hit=%v err=%v", hit, err)
	}
	if len(docs) != 1 || docs[0].ID != "p1" {
		t.Fatalf("docs = %+v", docs)
	}
}
