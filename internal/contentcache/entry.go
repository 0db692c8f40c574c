package contentcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry is the envelope stored for every cached value. TTLSeconds is the
// lifetime assigned when the entry was written; later policy changes do not
// alter it.
type Entry struct {
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	StoredAt   time.Time       `json:"stored_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
}

// TTL returns the recorded lifetime.
func (e Entry) TTL() time.Duration {
	return time.Duration(e.TTLSeconds) * time.Second
}

// ExpiresAt returns when the backend drops the entry.
func (e Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL())
}

var errEmptyValue = errors.New("empty value")

func encodeEntry(key string, value any, now time.Time, ttl time.Duration) ([]byte, error) {
	var raw json.RawMessage
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if len(raw) == 0 {
		return nil, errEmptyValue
	}
	return json.Marshal(Entry{
		Key:        key,
		Value:      raw,
		StoredAt:   now.UTC(),
		TTLSeconds: int64(ttl / time.Second),
	})
}

func decodeEntry(data []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	if len(e.Value) == 0 {
		return Entry{}, fmt.Errorf("decode cache entry: %w", errEmptyValue)
	}
	return e, nil
}
