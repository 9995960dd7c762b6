// Package compare queries multiple e-commerce vendors in parallel and
// merges their listings into one ranked comparison.
//
// The pipeline per request: validate the query, fan out one search per
// vendor (each with its own cache read-through, rate limit, and retry
// policy), merge, filter by price and relevance, sort, and aggregate.
// Vendor failures never fail a comparison; the only caller-visible error
// is ErrEmptyQuery.
package compare

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"dealradar/compare/internal/cache"
	"dealradar/compare/internal/normalize"
	"dealradar/compare/internal/vendor"
)

// minPriceRatio derives the minimum price hint from a request's maximum:
// below 30% of the budget, results are almost always accessories.
const minPriceRatio = 0.3

// Request is one comparison query.
type Request struct {
	// Query is the product search text. Required.
	Query string `json:"product_name"`

	// MaxPrice caps the sale price; zero means unbounded. A minimum of
	// 30% of MaxPrice is hinted to vendors and the cache, but only the
	// maximum is enforced on the final list.
	MaxPrice float64 `json:"max_price"`

	// SortBy is SortByPrice (default) or SortByDiscount.
	SortBy string `json:"sort_by"`
}

// Service runs comparisons against a fixed vendor set.
type Service struct {
	config  Config
	logger  *slog.Logger
	store   Cache
	flog    FetchLog
	metrics *Metrics
	httpc   *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
	clients []*vendor.Client
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithCache sets the result cache. Default: no caching.
func WithCache(store Cache) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithFetchLog sets the fetch attempt log. Default: discarded.
func WithFetchLog(fl FetchLog) ServiceOption {
	return func(s *Service) { s.flog = fl }
}

// WithMetrics sets the metrics registry. Default: a private registry.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithHTTPClient sets the HTTP client used for vendor requests.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) { s.httpc = c }
}

// WithSleep replaces the backoff sleep between retries. Tests use this to
// avoid waiting out real backoffs.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) { s.sleep = sleep }
}

// New builds a Service from cfg. Zero-value config fields get defaults.
func New(cfg Config, opts ...ServiceOption) *Service {
	cfg.defaults()

	s := &Service{
		config: cfg,
		logger: slog.Default(),
		store:  cache.Nop{},
		flog:   cache.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.httpc == nil {
		s.httpc = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := vendor.NewLimiter(cfg.RateLimitDelay)
	normOpts := normalize.Options{
		ConversionRate: cfg.ConversionRate,
		ShowImages:     cfg.ShowImages,
		MaxPerVendor:   cfg.MaxPerVendor,
		MinDiscount:    cfg.MinDiscount,
	}
	for _, spec := range cfg.Vendors {
		s.clients = append(s.clients, vendor.NewClient(vendor.ClientConfig{
			Spec:       spec,
			HTTPClient: s.httpc,
			Limiter:    limiter,
			Cache:      s.store,
			FetchLog:   s.flog,
			Metrics:    s.metrics,
			Logger:     s.logger,
			Normalize:  normOpts,
			MaxRetries: cfg.MaxRetries,
			Sleep:      s.sleep,
		}))
	}
	return s
}

// Vendors returns the configured vendor names, in configuration order.
func (s *Service) Vendors() []string {
	names := make([]string, len(s.clients))
	for i, c := range s.clients {
		names[i] = c.Name()
	}
	return names
}

// Compare runs the query against every vendor in parallel and returns the
// merged, filtered, ranked result. The only error is ErrEmptyQuery; every
// other failure mode degrades to cached or synthetic data.
func (s *Service) Compare(ctx context.Context, req Request) (*Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	s.metrics.Comparisons.Inc()
	start := time.Now()

	minPrice := 0.0
	if req.MaxPrice > 0 {
		minPrice = minPriceRatio * req.MaxPrice
	}

	batches := make([][]Product, len(s.clients))
	var wg sync.WaitGroup
	for i, c := range s.clients {
		wg.Add(1)
		go func(i int, c *vendor.Client) {
			defer wg.Done()
			batches[i] = c.Search(ctx, query, minPrice, req.MaxPrice)
		}(i, c)
	}
	wg.Wait()

	vendorCounts := make(map[string]int, len(s.clients))
	var merged []Product
	for i, batch := range batches {
		vendorCounts[s.clients[i].Name()] = len(batch)
		merged = append(merged, batch...)
	}

	// The vendor-side price params are hints; this filter is authoritative.
	if req.MaxPrice > 0 {
		kept := merged[:0]
		for _, p := range merged {
			if p.SalePrice <= req.MaxPrice {
				kept = append(kept, p)
			}
		}
		merged = kept
	}

	merged = filterRelevant(merged, query)
	sortProducts(merged, req.SortBy)

	result := buildResult(query, merged, vendorCounts)
	s.logger.Info("comparison complete",
		"query", query,
		"products", result.TotalCount,
		"vendors", len(s.clients),
		"best_platform", result.BestPlatform,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
