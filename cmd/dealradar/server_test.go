package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"dealradar/compare"
	"dealradar/dbopen"
)

const fakeListings = `{"products":[
	{"name": "Dell Gaming Laptop G15", "price": 45000, "id": "SKU001"},
	{"name": "HP Victus Gaming 16", "price": 52000, "id": "SKU002"},
	{"name": "Lenovo LOQ Gaming", "price": 48000, "id": "SKU003"},
	{"name": "ASUS TUF Gaming A15", "price": 61000, "id": "SKU004"},
	{"name": "Acer Nitro V Gaming", "price": 55000, "id": "SKU005"},
	{"name": "MSI Thin Gaming 15", "price": 58000, "id": "SKU006"}
]}`

// newTestServer wires a server against one fake vendor with an in-memory
// cache and fetch log.
func newTestServer(t *testing.T) *server {
	t.Helper()
	vendorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, fakeListings)
	}))
	t.Cleanup(vendorSrv.Close)

	db := dbopen.OpenMemory(t)
	if err := compare.ApplyCacheSchema(db); err != nil {
		t.Fatalf("schema: %v", err)
	}

	cfg := compare.Config{
		Vendors: []compare.VendorSpec{{
			Name:     "Amazon",
			Endpoint: vendorSrv.URL,
			Mapping: compare.Mapping{
				ResultPaths: []string{"products"},
				NameFields:  []string{"name"},
				PriceFields: []string{"price"},
				SKUField:    "id",
				SearchURL:   "https://example.com/search?q={query}",
			},
		}},
		RateLimitDelay: time.Millisecond,
	}
	store := compare.NewSQLiteCache(db, cfg)
	metrics := compare.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := compare.New(cfg,
		compare.WithLogger(logger),
		compare.WithMetrics(metrics),
		compare.WithCache(store),
		compare.WithFetchLog(store),
		compare.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	return newServer(svc, store, metrics, logger)
}

func postCompare(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompareEndpoint(t *testing.T) {
	// WHAT: A valid request returns the comparison in the wire shape:
	// success flag, products with mrp/platform/product_link, aggregates.
	h := newTestServer(t).routes()

	rec := postCompare(t, h, `{"product_name": "gaming laptop", "max_price": 60000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success      bool             `json:"success"`
		Products     []map[string]any `json:"products"`
		TotalCount   int              `json:"total_count"`
		VendorCounts map[string]int   `json:"vendor_counts"`
		BestDeal     map[string]any   `json:"best_deal"`
		BestPlatform string           `json:"best_platform"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.TotalCount != 5 {
		t.Errorf("total count: %d, want 5 (one product above max_price)", resp.TotalCount)
	}
	if resp.VendorCounts["Amazon"] != 6 {
		t.Errorf("vendor counts: %v", resp.VendorCounts)
	}
	first := resp.Products[0]
	for _, key := range []string{"name", "mrp", "sale_price", "discount", "product_link", "platform", "rating", "savings"} {
		if _, ok := first[key]; !ok {
			t.Errorf("product missing %q: %v", key, first)
		}
	}
	if resp.BestDeal["sale_price"].(float64) != 45000 {
		t.Errorf("best deal: %v", resp.BestDeal)
	}
	if resp.BestPlatform != "Amazon" {
		t.Errorf("best platform: %q", resp.BestPlatform)
	}
}

func TestCompareEndpointEmptyName(t *testing.T) {
	// WHAT: A blank product name is a 400, the pipeline's only user error.
	h := newTestServer(t).routes()

	for _, body := range []string{`{"product_name": ""}`, `{"product_name": "   "}`, `{}`} {
		rec := postCompare(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status %d, want 400", body, rec.Code)
		}
		var resp struct {
			Success bool `json:"success"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Success {
			t.Errorf("body %s: success = true on error", body)
		}
	}
}

func TestCompareEndpointBadJSON(t *testing.T) {
	h := newTestServer(t).routes()
	rec := postCompare(t, h, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: %d, want 400", rec.Code)
	}
}

func TestVendorsEndpoint(t *testing.T) {
	h := newTestServer(t).routes()
	req := httptest.NewRequest(http.MethodGet, "/api/vendors", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp struct {
		Vendors []string `json:"vendors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Vendors) != 1 || resp.Vendors[0] != "Amazon" {
		t.Errorf("vendors: %v", resp.Vendors)
	}
}

func TestFetchHistoryEndpoint(t *testing.T) {
	// WHAT: After a comparison, the vendor's fetch log is readable over HTTP.
	s := newTestServer(t)
	h := s.routes()

	postCompare(t, h, `{"product_name": "gaming laptop"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/vendors/Amazon/fetches", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	var resp struct {
		Fetches []compare.FetchLogEntry `json:"fetches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Fetches) != 1 || resp.Fetches[0].Outcome != "ok" {
		t.Errorf("fetches: %+v", resp.Fetches)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	h := newTestServer(t).routes()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status: %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t).routes()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dealradar_comparisons_total") {
		t.Error("metrics output missing pipeline counters")
	}
}
