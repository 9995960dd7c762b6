package compare

import (
	"time"

	"dealradar/compare/internal/vendor"
)

// Config holds the comparison service settings. The zero value is usable:
// defaults() fills in the built-in vendor set and the standard knobs.
type Config struct {
	// Vendors is the set of vendor APIs to query. Empty means the built-in
	// Amazon + Flipkart specs.
	Vendors []VendorSpec

	// ConversionRate converts foreign-currency prices to the local
	// currency. Default: 82.0.
	ConversionRate float64

	// Timeout bounds each vendor HTTP request. Default: 30s.
	Timeout time.Duration

	// MaxRetries is the attempt budget per vendor per search. Default: 3.
	MaxRetries int

	// RateLimitDelay is the minimum spacing between requests to the same
	// vendor. Default: 1.5s.
	RateLimitDelay time.Duration

	// CacheTTL is how long cached results stay valid. Default: 6h.
	CacheTTL time.Duration

	// ShowImages populates product image URLs when true. Off by default:
	// images bloat responses and most callers render text.
	ShowImages bool

	// MaxPerVendor caps how many raw records are normalized per vendor per
	// request. Default: 20.
	MaxPerVendor int

	// MinDiscount drops products discounted less than this percent.
	// Default: 0 (keep everything).
	MinDiscount float64
}

func (c *Config) defaults() {
	if len(c.Vendors) == 0 {
		c.Vendors = vendor.DefaultSpecs()
	}
	if c.ConversionRate <= 0 {
		c.ConversionRate = 82.0
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = vendor.DefaultRateLimitDelay
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 6 * time.Hour
	}
	if c.MaxPerVendor <= 0 {
		c.MaxPerVendor = 20
	}
}
