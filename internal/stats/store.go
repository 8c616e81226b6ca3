package stats

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store keeps the single stats record. Implementations serialise
// Increment so concurrent callers never lose an update.
type Store interface {
	Increment(ctx context.Context, keyword string) (*Record, error)
	Load(ctx context.Context) (*Record, error)
	Close() error
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock overrides the clock used to pick the day bucket.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns the store for backend rooted at path.
func Open(backend, path string, opts ...Option) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendJSON:
		return OpenFileStore(path, opts...)
	case BackendSQLite:
		return OpenSQLiteStore(path, opts...)
	default:
		return nil, fmt.Errorf("unknown stats backend %q", backend)
	}
}

func normalizeKeyword(keyword string) string {
	if strings.TrimSpace(keyword) == "" {
		return DefaultKeyword
	}
	return keyword
}
