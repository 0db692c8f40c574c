package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
)

// Reconnect tuning defaults.
const (
	DefaultMaxReconnects    = 10
	DefaultFailureThreshold = 3
	reconnectStep           = 50 * time.Millisecond
	reconnectCap            = 3 * time.Second
)

// ReconnectDelay returns the wait before reconnect attempt n (1-based):
// min(n*50ms, 3s).
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * reconnectStep
	if d > reconnectCap {
		return reconnectCap
	}
	return d
}

// tracker follows backend availability.
//
//	Connecting ──(ping ok)──► Connected ──(threshold consecutive failures)──► Connecting
//	     │                                                                         │
//	     └──(max attempts exhausted)──► Unavailable ◄───────────────────────────────┘
//
// Unavailable is left only through an explicit reconnect. Transitions are
// logged; individual operation failures are not.
type tracker struct {
	mu           sync.Mutex
	state        Availability
	failures     int
	threshold    int
	maxAttempts  int
	delay        func(attempt int) time.Duration
	ping         func(ctx context.Context) error
	pingTimeout  time.Duration
	reconnecting bool
	closed       bool
	stop         chan struct{}
	name         string
}

func newTracker(name string, ping func(ctx context.Context) error, maxAttempts int, pingTimeout time.Duration) *tracker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxReconnects
	}
	if pingTimeout <= 0 {
		pingTimeout = DefaultOpTimeout
	}
	return &tracker{
		state:        Connecting,
		threshold:    DefaultFailureThreshold,
		maxAttempts:  maxAttempts,
		delay:        ReconnectDelay,
		ping:         ping,
		pingTimeout:  pingTimeout,
		stop:         make(chan struct{}),
		name:         name,
	}
}

func (t *tracker) current() Availability {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// setLocked must be called with t.mu held.
func (t *tracker) setLocked(s Availability) {
	if t.state == s {
		return
	}
	prev := t.state
	t.state = s
	metrics.SetBackendAvailability(s.String())
	switch s {
	case Connected:
		logging.Op().Info("kv backend connected", "backend", t.name, "previous", prev.String())
	case Connecting:
		logging.Op().Warn("kv backend connection lost, reconnecting", "backend", t.name)
	case Unavailable:
		logging.Op().Error("kv backend unavailable, cache is pass-through", "backend", t.name)
	}
}

// connect pings once. Failure leaves the store Unavailable.
func (t *tracker) connect(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, t.pingTimeout)
	defer cancel()
	err := t.ping(pctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return err
	}
	if err != nil {
		t.setLocked(Unavailable)
		return err
	}
	t.failures = 0
	t.setLocked(Connected)
	return nil
}

func (t *tracker) recordSuccess() {
	t.mu.Lock()
	t.failures = 0
	t.mu.Unlock()
}

// recordFailure counts a failed operation. Once the threshold of consecutive
// failures is reached a background reconnect loop starts.
func (t *tracker) recordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.state != Connected {
		return
	}
	t.failures++
	if t.failures < t.threshold {
		return
	}
	t.failures = 0
	t.setLocked(Connecting)
	if !t.reconnecting {
		t.reconnecting = true
		go t.reconnectLoop()
	}
}

func (t *tracker) reconnectLoop() {
	defer func() {
		t.mu.Lock()
		t.reconnecting = false
		t.mu.Unlock()
	}()

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		select {
		case <-t.stop:
			return
		case <-time.After(t.delay(attempt)):
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.pingTimeout)
		err := t.ping(ctx)
		cancel()
		if err == nil {
			metrics.RecordReconnect("success")
			t.mu.Lock()
			if !t.closed {
				t.failures = 0
				t.setLocked(Connected)
			}
			t.mu.Unlock()
			return
		}
		metrics.RecordReconnect("failed")
		logging.Op().Debug("kv reconnect attempt failed", "backend", t.name, "attempt", attempt, "error", err)
	}

	metrics.RecordReconnect("gave_up")
	t.mu.Lock()
	if !t.closed {
		t.setLocked(Unavailable)
	}
	t.mu.Unlock()
}

func (t *tracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.stop)
}
