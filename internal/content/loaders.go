package content

import (
	"context"

	"github.com/oriys/folio/internal/contentcache"
	"github.com/oriys/folio/internal/domain"
)

// Published lists the published documents of ct. It is the value cached
// under the whole-collection key of ct.
func Published(ctx context.Context, s Store, ct domain.ContentType) ([]*domain.Document, error) {
	return s.List(ctx, ct, ListOptions{PublishedOnly: true})
}

// CollectionLoader returns the cache loader of the published collection of ct.
func CollectionLoader(s Store, ct domain.ContentType) contentcache.Loader {
	return func(ctx context.Context) (any, error) {
		return Published(ctx, s, ct)
	}
}

// RegisterLoaders registers the collection loader of every type with c so
// WarmCache can populate them. No types means every built-in type.
func RegisterLoaders(c *contentcache.Cache, s Store, types ...domain.ContentType) {
	if len(types) == 0 {
		types = domain.ContentTypes()
	}
	for _, ct := range types {
		c.RegisterLoader(ct, CollectionLoader(s, ct))
	}
}
