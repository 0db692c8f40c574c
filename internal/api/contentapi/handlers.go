// Package contentapi serves site content over HTTP. Reads go through the
// content cache; writes go to the content store and are wrapped by the
// invalidation middleware so the cache is evicted after a successful write.
package contentapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/contentcache"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/invalidation"
	"github.com/oriys/folio/internal/logging"
)

// CacheHeader reports whether a read was served from the cache.
const CacheHeader = "X-Cache"

// maxBody bounds request bodies of write endpoints.
const maxBody = 1 << 20

// PublishTypes are the content types the publish action releases together.
var PublishTypes = []domain.ContentType{domain.ContentBlog, domain.ContentSNS, domain.ContentHero}

// Handler handles /api/content requests.
type Handler struct {
	Store        content.Store
	Cache        *contentcache.Cache
	Invalidation *invalidation.Middleware
}

type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// documentInput is the body of create and update requests.
type documentInput struct {
	Data      json.RawMessage `json:"data"`
	Published bool            `json:"published"`
}

// RegisterRoutes registers all content routes on the given mux. Write routes
// are registered per content type so each evicts exactly its own namespace.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/content/{type}", h.List)
	mux.HandleFunc("GET /api/content/{type}/{id}", h.Get)

	for _, ct := range domain.ContentTypes() {
		evict := h.Invalidation.For(ct)
		base := "/api/content/" + string(ct)
		mux.Handle("POST "+base, evict(h.create(ct)))
		mux.Handle("PUT "+base+"/{id}", evict(h.update(ct)))
		mux.Handle("DELETE "+base+"/{id}", evict(h.remove(ct)))
	}

	mux.Handle("POST /api/content/publish", h.Invalidation.ForTypes(PublishTypes...)(http.HandlerFunc(h.Publish)))
}

// List handles GET /api/content/{type}
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.contentType(w, r)
	if !ok {
		return
	}
	docs, hit, err := contentcache.Fetch(r.Context(), h.Cache, ct, "", func(ctx context.Context) ([]*domain.Document, error) {
		return content.Published(ctx, h.Store, ct)
	})
	setCacheHeader(w, hit)
	if err != nil {
		logging.Op().Error("list content failed", "content_type", ct, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load content")
		return
	}
	writeData(w, http.StatusOK, docs)
}

// Get handles GET /api/content/{type}/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.contentType(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		// An empty identifier would address the collection entry
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	doc, hit, err := contentcache.Fetch(r.Context(), h.Cache, ct, id, func(ctx context.Context) (*domain.Document, error) {
		doc, err := h.Store.Get(ctx, ct, id)
		if err != nil {
			return nil, err
		}
		if !doc.Published {
			return nil, content.ErrNotFound
		}
		return doc, nil
	})
	setCacheHeader(w, hit)
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	if err != nil {
		logging.Op().Error("get content failed", "content_type", ct, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load content")
		return
	}
	writeData(w, http.StatusOK, doc)
}

func (h *Handler) create(ct domain.ContentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeInput(w, r)
		if !ok {
			return
		}
		doc := &domain.Document{Type: ct, Data: in.Data, Published: in.Published}
		if err := h.Store.Save(r.Context(), doc); err != nil {
			logging.Op().Error("create content failed", "content_type", ct, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save content")
			return
		}
		writeData(w, http.StatusCreated, doc)
	}
}

func (h *Handler) update(ct domain.ContentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		in, ok := decodeInput(w, r)
		if !ok {
			return
		}
		existing, err := h.Store.Get(r.Context(), ct, id)
		if errors.Is(err, content.ErrNotFound) {
			writeError(w, http.StatusNotFound, "content not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load content")
			return
		}
		existing.Data = in.Data
		existing.Published = in.Published
		if err := h.Store.Save(r.Context(), existing); err != nil {
			logging.Op().Error("update content failed", "content_type", ct, "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save content")
			return
		}
		writeData(w, http.StatusOK, existing)
	}
}

func (h *Handler) remove(ct domain.ContentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		err := h.Store.Delete(r.Context(), ct, id)
		if errors.Is(err, content.ErrNotFound) {
			writeError(w, http.StatusNotFound, "content not found")
			return
		}
		if err != nil {
			logging.Op().Error("delete content failed", "content_type", ct, "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete content")
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id})
	}
}

// Publish handles POST /api/content/publish. It publishes every draft of
// PublishTypes. A run with no drafts answers {"ok": false} so nothing is
// evicted.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	published := make(map[domain.ContentType]int)
	total := 0
	for _, ct := range PublishTypes {
		docs, err := h.Store.List(r.Context(), ct, content.ListOptions{})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list drafts")
			return
		}
		for _, doc := range docs {
			if doc.Published {
				continue
			}
			doc.Published = true
			if err := h.Store.Save(r.Context(), doc); err != nil {
				logging.Op().Error("publish failed", "content_type", ct, "id", doc.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to publish content")
				return
			}
			published[ct]++
			total++
		}
	}
	if total == 0 {
		writeJSON(w, http.StatusOK, envelope{OK: false, Error: "nothing to publish"})
		return
	}
	writeData(w, http.StatusOK, published)
}

func (h *Handler) contentType(w http.ResponseWriter, r *http.Request) (domain.ContentType, bool) {
	ct, err := domain.ParseContentType(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return ct, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (documentInput, bool) {
	var in documentInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return in, false
	}
	if len(in.Data) == 0 || !json.Valid(in.Data) {
		writeError(w, http.StatusBadRequest, "data is required")
		return in, false
	}
	return in, true
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set(CacheHeader, "HIT")
	} else {
		w.Header().Set(CacheHeader, "MISS")
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
