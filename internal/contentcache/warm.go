package contentcache

import (
	"context"
	"time"

	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/kvstore"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
)

// WarmReport is the outcome of WarmCache. A content type is in exactly one of
// the three sets.
type WarmReport struct {
	Warmed   []domain.ContentType          `json:"warmed"`
	Failed   map[domain.ContentType]string `json:"failed,omitempty"`
	Skipped  []domain.ContentType          `json:"skipped,omitempty"`
	Duration time.Duration                 `json:"duration"`
}

// OK reports whether every registered loader succeeded.
func (r WarmReport) OK() bool {
	return len(r.Failed) == 0
}

// WarmCache populates the whole-collection entry of every content type with
// a registered loader, so the first request after a deploy or flush is not a
// cold miss. A failing loader is logged and skipped; the others still run.
// Built-in types without a loader are reported as skipped, and so is a type
// whose loader ran while the backend was not connected: nothing was stored
// for it, so the next request is still a cold miss.
//
// The only error is ErrNothingToWarm: the backend is unavailable and there
// is no loader to call.
func (c *Cache) WarmCache(ctx context.Context) (WarmReport, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "cache.warm",
		observability.AttrAvailability.String(c.store.Availability().String()),
	)
	defer span.End()

	types := c.Loaders()
	if len(types) == 0 && c.store.Availability() != kvstore.Connected {
		observability.SetSpanError(span, ErrNothingToWarm)
		return WarmReport{}, ErrNothingToWarm
	}

	report := WarmReport{Failed: make(map[domain.ContentType]string)}
	for _, ct := range types {
		if err := ctx.Err(); err != nil {
			report.Failed[ct] = err.Error()
			continue
		}
		load, ok := c.loader(ct)
		if !ok {
			continue
		}
		if _, err := c.GetOrLoad(ctx, ct, "", load); err != nil {
			logging.OpContext(ctx).Warn("cache warm failed", "content_type", ct, "error", err)
			metrics.RecordWarm(string(ct), "failed")
			report.Failed[ct] = err.Error()
			continue
		}
		if c.store.Availability() != kvstore.Connected {
			metrics.RecordWarm(string(ct), "skipped")
			report.Skipped = append(report.Skipped, ct)
			continue
		}
		metrics.RecordWarm(string(ct), "warmed")
		report.Warmed = append(report.Warmed, ct)
	}
	for _, ct := range c.policy.ContentTypes() {
		if _, ok := c.loader(ct); !ok {
			metrics.RecordWarm(string(ct), "skipped")
			report.Skipped = append(report.Skipped, ct)
		}
	}
	report.Duration = time.Since(start)

	logging.Op().Info("cache warm completed",
		"warmed", len(report.Warmed),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped),
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}
