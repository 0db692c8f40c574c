package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/folio/internal/contentcache"
	"github.com/oriys/folio/internal/domain"
)

type fakeCache struct {
	calls atomic.Int64
	block chan struct{}
	err   error
}

func (f *fakeCache) WarmCache(ctx context.Context) (contentcache.WarmReport, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return contentcache.WarmReport{Warmed: []domain.ContentType{domain.ContentBlog}}, f.err
}

func TestAddWarm_InvalidSpec(t *testing.T) {
	s := New(&fakeCache{}, time.Second)
	if err := s.AddWarm("warm", "not a cron spec"); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestAddWarm_ReplacesSameName(t *testing.T) {
	s := New(&fakeCache{}, time.Second)
	if err := s.AddWarm("warm", "@every 1h"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddWarm("warm", "@every 2h"); err != nil {
		t.Fatal(err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Fatalf("entries = %d, want 1", len(s.cron.Entries()))
	}
	if _, ok := s.Next("warm"); !ok {
		t.Fatal("replaced job should still be scheduled")
	}
	if _, ok := s.Next("other"); ok {
		t.Fatal("unknown job reported as scheduled")
	}
}

func TestNext_AfterStart(t *testing.T) {
	s := New(&fakeCache{}, time.Second)
	if err := s.AddWarm("warm", "@every 1h"); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop(context.Background())

	next, ok := s.Next("warm")
	if !ok {
		t.Fatal("job not found")
	}
	if d := time.Until(next); d <= 0 || d > time.Hour {
		t.Fatalf("next run in %v, want within the hour", d)
	}
}

func TestScheduledWarmRuns(t *testing.T) {
	f := &fakeCache{}
	s := New(f, time.Second)
	if err := s.AddWarm("warm", "@every 1s"); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for f.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if f.calls.Load() == 0 {
		t.Fatal("scheduled warm never ran")
	}
}

func TestWarmNow_SkipsOverlap(t *testing.T) {
	f := &fakeCache{block: make(chan struct{})}
	s := New(f, time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.WarmNow(context.Background())
	}()
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	report, err := s.WarmNow(context.Background())
	if err != nil || len(report.Warmed) != 0 {
		t.Fatalf("overlapping run should be skipped: %+v %v", report, err)
	}
	close(f.block)
	wg.Wait()

	if f.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", f.calls.Load())
	}
}

func TestWarmNow_PropagatesError(t *testing.T) {
	s := New(&fakeCache{err: contentcache.ErrNothingToWarm}, time.Second)
	if _, err := s.WarmNow(context.Background()); !errors.Is(err, contentcache.ErrNothingToWarm) {
		t.Fatalf("err = %v", err)
	}
}
