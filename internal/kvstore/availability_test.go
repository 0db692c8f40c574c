package kvstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 50 * time.Millisecond},
		{1, 50 * time.Millisecond},
		{4, 200 * time.Millisecond},
		{60, 3 * time.Second},
		{1000, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := ReconnectDelay(tt.attempt); got != tt.want {
			t.Fatalf("ReconnectDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func waitForState(t *testing.T, tr *tracker, want Availability) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tr.current() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", tr.current(), want)
}

func TestTracker_ConnectFailsSoft(t *testing.T) {
	tr := newTracker("test", func(context.Context) error {
		return errors.New("connection refused")
	}, 3, 50*time.Millisecond)
	defer tr.close()

	if err := tr.connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if tr.current() != Unavailable {
		t.Fatalf("state = %v, want unavailable", tr.current())
	}
}

func TestTracker_ReconnectsAfterFailures(t *testing.T) {
	var down atomic.Bool
	tr := newTracker("test", func(context.Context) error {
		if down.Load() {
			return errors.New("down")
		}
		return nil
	}, 5, 50*time.Millisecond)
	tr.delay = func(int) time.Duration { return time.Millisecond }
	defer tr.close()

	if err := tr.connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	// Below the threshold nothing changes.
	tr.recordFailure()
	tr.recordFailure()
	if tr.current() != Connected {
		t.Fatalf("state = %v, want connected", tr.current())
	}
	tr.recordSuccess()
	tr.recordFailure()
	tr.recordFailure()
	if tr.current() != Connected {
		t.Fatal("a success should reset the consecutive failure count")
	}

	tr.recordFailure()
	// The ping succeeds, so the loop recovers.
	waitForState(t, tr, Connected)
}

func TestTracker_GivesUp(t *testing.T) {
	var pings atomic.Int32
	var up atomic.Bool
	tr := newTracker("test", func(context.Context) error {
		pings.Add(1)
		if up.Load() {
			return nil
		}
		return errors.New("down")
	}, 3, 50*time.Millisecond)
	tr.delay = func(int) time.Duration { return time.Millisecond }
	defer tr.close()

	up.Store(true)
	tr.connect(context.Background())
	up.Store(false)

	for i := 0; i < DefaultFailureThreshold; i++ {
		tr.recordFailure()
	}
	waitForState(t, tr, Unavailable)

	// 1 initial connect ping + 3 reconnect attempts.
	if got := pings.Load(); got != 4 {
		t.Fatalf("expected 4 pings, got %d", got)
	}

	// Failures while unavailable do not restart the loop.
	tr.recordFailure()
	time.Sleep(10 * time.Millisecond)
	if got := pings.Load(); got != 4 {
		t.Fatalf("expected no further pings, got %d", got)
	}

	// Explicit reconnect recovers.
	up.Store(true)
	if err := tr.connect(context.Background()); err != nil {
		t.Fatalf("explicit reconnect failed: %v", err)
	}
	if tr.current() != Connected {
		t.Fatalf("state = %v, want connected", tr.current())
	}
}
