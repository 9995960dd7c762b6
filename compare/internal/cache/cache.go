// Package cache provides the read-through/write-through result cache.
//
// Entries are keyed by (query, vendor) with a TTL. Caching is an
// optimization, never a correctness dependency: every error a backend
// returns is treated by callers as a miss. Two backends exist, SQLite
// (primary, embedded) and Redis (for deployments sharing a cache across
// instances), plus a Nop for cacheless operation.
package cache

import (
	"context"
	"time"

	"dealradar/compare/internal/normalize"
)

// DefaultTTL is how long cached listings stay valid.
const DefaultTTL = 6 * time.Hour

// maxRows caps how many cached rows a single Get returns.
const maxRows = 30

// Store is the cache contract the vendor clients program against.
type Store interface {
	// Get returns cached products for (query, vendor) newer than the TTL,
	// filtered by the price bounds when non-zero, capped at 30 rows.
	// A miss is ([], nil); backend failures return an error the caller
	// must downgrade to a miss.
	Get(ctx context.Context, query, vendor string, minPrice, maxPrice float64) ([]normalize.Product, error)

	// Put upserts the products for (query, vendor), evicting expired rows
	// for that key first.
	Put(ctx context.Context, query, vendor string, products []normalize.Product) error
}

// FetchLogEntry is one vendor fetch attempt record.
type FetchLogEntry struct {
	ID           string `json:"id"`
	Vendor       string `json:"vendor"`
	Query        string `json:"query"`
	Outcome      string `json:"outcome"` // ok | cache | fallback
	StatusCode   int    `json:"status_code"`
	Records      int    `json:"records"`
	Skipped      int    `json:"skipped"`
	ErrorMessage string `json:"error_message"`
	DurationMs   int64  `json:"duration_ms"`
	FetchedAt    int64  `json:"fetched_at"`
}

// FetchLogger records fetch attempts for observability. Best effort:
// callers ignore errors.
type FetchLogger interface {
	RecordFetch(ctx context.Context, e *FetchLogEntry) error
}

// Config configures a cache backend.
type Config struct {
	// TTL is how long entries stay valid. Default: 6 hours.
	TTL time.Duration
	// ShowImages controls whether image URLs survive a read. When off,
	// cached rows are handed out with the image field cleared even if the
	// stored row has one; display policy is enforced at read time.
	ShowImages bool
}

func (c *Config) defaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
}

// Nop is a Store and FetchLogger that caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string, string, float64, float64) ([]normalize.Product, error) {
	return nil, nil
}

func (Nop) Put(context.Context, string, string, []normalize.Product) error { return nil }

func (Nop) RecordFetch(context.Context, *FetchLogEntry) error { return nil }

// inBounds reports whether a sale price passes the optional bounds
// (zero means unbounded).
func inBounds(salePrice, minPrice, maxPrice float64) bool {
	if minPrice > 0 && salePrice < minPrice {
		return false
	}
	if maxPrice > 0 && salePrice > maxPrice {
		return false
	}
	return true
}
