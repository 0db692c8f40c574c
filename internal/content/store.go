// Package content is the source of truth for site content. Reads from it are
// slow compared to the cache; every write goes here first and the cache is
// invalidated afterwards.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/folio/internal/domain"
)

// ErrNotFound is returned when a document does not exist. It is a genuine
// answer from the source, not a failure, and is never cached.
var ErrNotFound = errors.New("content not found")

// ListOptions filters List.
type ListOptions struct {
	PublishedOnly bool
	Limit         int
}

// Store persists documents.
type Store interface {
	List(ctx context.Context, ct domain.ContentType, opts ListOptions) ([]*domain.Document, error)
	Get(ctx context.Context, ct domain.ContentType, id string) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, ct domain.ContentType, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// NewID returns a fresh document ID.
func NewID() string {
	return uuid.NewString()
}

// prepare validates doc and fills its ID and timestamps.
func prepare(doc *domain.Document, now time.Time) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	if err := domain.ValidateContentType(doc.Type); err != nil {
		return err
	}
	if len(doc.Data) == 0 {
		doc.Data = []byte("{}")
	}
	if doc.ID == "" {
		doc.ID = NewID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	return nil
}
