package kvstore

import (
	"context"
	"time"
)

// NullStore is the null-object Store used when caching is disabled. Every
// read misses and every write is ineffective.
type NullStore struct{}

func (NullStore) Connect(context.Context) error                          { return nil }
func (NullStore) Get(context.Context, string) ([]byte, bool)             { return nil, false }
func (NullStore) Set(context.Context, string, []byte, time.Duration) bool { return false }
func (NullStore) Delete(context.Context, string) bool                    { return false }
func (NullStore) DeletePattern(context.Context, string) bool             { return false }
func (NullStore) Exists(context.Context, string) bool                    { return false }
func (NullStore) Expire(context.Context, string, time.Duration) bool     { return false }
func (NullStore) Increment(context.Context, string) int64                { return 0 }
func (NullStore) Flush(context.Context) bool                             { return false }
func (NullStore) Availability() Availability                             { return Unavailable }
func (NullStore) Close() error                                           { return nil }
