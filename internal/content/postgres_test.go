package content

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/oriys/folio/internal/domain"
)

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("FOLIO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FOLIO_TEST_POSTGRES_DSN not set, skipping")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available, skipping: %v", err)
	}
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), `DELETE FROM documents WHERE id LIKE 'test-%'`)
		s.Close()
	})
	return s
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	doc := &domain.Document{
		ID:        "test-" + NewID(),
		Type:      domain.ContentProjects,
		Data:      json.RawMessage(`{"name":"folio"}`),
		Published: true,
	}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, domain.ContentProjects, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var data map[string]string
	if err := json.Unmarshal(got.Data, &data); err != nil || data["name"] != "folio" {
		t.Fatalf("data = %s (%v)", got.Data, err)
	}
	if !got.Published {
		t.Fatal("published flag lost")
	}

	docs, err := Published(ctx, s, domain.ContentProjects)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, d := range docs {
		if d.ID == doc.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("saved document missing from published list")
	}

	if err := s.Delete(ctx, domain.ContentProjects, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, domain.ContentProjects, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
