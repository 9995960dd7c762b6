package cache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"dealradar/compare/internal/normalize"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleProducts() []normalize.Product {
	return []normalize.Product{
		{Vendor: "Amazon", Name: "Dell Inspiron 15", Category: "Laptop", ListPrice: 60000, SalePrice: 48000, DiscountPercent: 20, Rating: 4.2, Stock: 80, URL: "https://example.com/p/1", ImageURL: "https://img.example.com/1.jpg", SKU: "AMZ1001"},
		{Vendor: "Amazon", Name: "HP Pavilion 14", Category: "Laptop", ListPrice: 55000, SalePrice: 41250, DiscountPercent: 25, Rating: 4.0, Stock: 120, URL: "https://example.com/p/2", SKU: "AMZ1002"},
		{Vendor: "Amazon", Name: "Lenovo IdeaPad 3", Category: "Laptop", ListPrice: 40000, SalePrice: 36000, DiscountPercent: 10, Rating: 4.4, Stock: 60, URL: "https://example.com/p/3", SKU: "AMZ1003"},
	}
}

func TestSQLitePutGetRoundTrip(t *testing.T) {
	// WHAT: Products written for (query, vendor) come back on Get within TTL.
	// WHY: The read-through path is what saves vendor API calls.
	s := NewSQLite(openTestDB(t), Config{ShowImages: true})
	ctx := context.Background()

	if err := s.Put(ctx, "laptop", "Amazon", sampleProducts()); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "laptop", "Amazon", 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d products, want 3", len(got))
	}
	if got[0].Vendor != "Amazon" {
		t.Errorf("vendor: got %q", got[0].Vendor)
	}
	if got[0].Category != "Laptop" {
		t.Errorf("category: got %q", got[0].Category)
	}
	if got[0].Savings != got[0].ListPrice-got[0].SalePrice {
		t.Errorf("savings not recomputed: %v", got[0].Savings)
	}
}

func TestSQLiteGetMissOnOtherKey(t *testing.T) {
	// WHAT: A different query or vendor is a miss.
	// WHY: Cache keys are (query, vendor); rows must never leak across keys.
	s := NewSQLite(openTestDB(t), Config{})
	ctx := context.Background()

	if err := s.Put(ctx, "laptop", "Amazon", sampleProducts()); err != nil {
		t.Fatalf("put: %v", err)
	}

	for _, k := range [][2]string{{"phone", "Amazon"}, {"laptop", "Flipkart"}} {
		got, err := s.Get(ctx, k[0], k[1], 0, 0)
		if err != nil {
			t.Fatalf("get %v: %v", k, err)
		}
		if len(got) != 0 {
			t.Errorf("key %v: got %d products, want 0", k, len(got))
		}
	}
}

func TestSQLiteTTLExpiry(t *testing.T) {
	// WHAT: Rows older than the TTL are invisible to Get and evicted by Put.
	// WHY: Six-hour-old prices are stale; serving them defeats the comparison.
	db := openTestDB(t)
	s := NewSQLite(db, Config{TTL: time.Hour})
	ctx := context.Background()

	if err := s.Put(ctx, "laptop", "Amazon", sampleProducts()); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Age all rows past the TTL.
	old := time.Now().Add(-2 * time.Hour).UnixMilli()
	if _, err := db.Exec(`UPDATE product_cache SET cached_at = ?`, old); err != nil {
		t.Fatalf("age rows: %v", err)
	}

	got, err := s.Get(ctx, "laptop", "Amazon", 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expired rows returned: %d", len(got))
	}

	// A fresh Put evicts the aged rows for the key.
	if err := s.Put(ctx, "laptop", "Amazon", sampleProducts()[:1]); err != nil {
		t.Fatalf("second put: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM product_cache`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("after eviction: %d rows, want 1", count)
	}
}

func TestSQLiteUpsertRefreshesPrices(t *testing.T) {
	// WHAT: Re-putting the same (vendor, name, category) updates prices in place.
	// WHY: Row-level upsert keeps concurrent vendor tasks from duplicating rows.
	db := openTestDB(t)
	s := NewSQLite(db, Config{})
	ctx := context.Background()

	batch := sampleProducts()[:1]
	if err := s.Put(ctx, "laptop", "Amazon", batch); err != nil {
		t.Fatalf("put: %v", err)
	}
	batch[0].SalePrice = 45000
	batch[0].DiscountPercent = 25
	if err := s.Put(ctx, "laptop", "Amazon", batch); err != nil {
		t.Fatalf("second put: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM product_cache`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows: got %d, want 1", count)
	}

	got, err := s.Get(ctx, "laptop", "Amazon", 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[0].SalePrice != 45000 {
		t.Errorf("sale price not refreshed: %v", got[0].SalePrice)
	}
}

func TestSQLitePriceBounds(t *testing.T) {
	// WHAT: Optional min/max bounds trim rows by sale price.
	// WHY: Bounded requests should not haul irrelevant cached rows around.
	s := NewSQLite(openTestDB(t), Config{})
	ctx := context.Background()

	if err := s.Put(ctx, "laptop", "Amazon", sampleProducts()); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "laptop", "Amazon", 40000, 45000)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].Name != "HP Pavilion 14" {
		t.Fatalf("bounds: got %d products, want only HP Pavilion 14", len(got))
	}
}

func TestSQLiteImagePolicyAtReadTime(t *testing.T) {
	// WHAT: With images disabled, Get clears image URLs even when the stored
	// row has one.
	// WHY: Display policy is enforced at read time, not write time.
	db := openTestDB(t)
	ctx := context.Background()

	withImages := NewSQLite(db, Config{ShowImages: true})
	if err := withImages.Put(ctx, "laptop", "Amazon", sampleProducts()); err != nil {
		t.Fatalf("put: %v", err)
	}

	noImages := NewSQLite(db, Config{ShowImages: false})
	got, err := noImages.Get(ctx, "laptop", "Amazon", 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, p := range got {
		if p.ImageURL != "" {
			t.Errorf("image leaked through read policy: %q", p.ImageURL)
		}
	}
}

func TestSQLiteRowCap(t *testing.T) {
	// WHAT: Get returns at most 30 rows.
	// WHY: The cap bounds response size regardless of how much was cached.
	s := NewSQLite(openTestDB(t), Config{})
	ctx := context.Background()

	var batch []normalize.Product
	for i := 0; i < 40; i++ {
		p := sampleProducts()[0]
		p.Name = p.Name + " v" + string(rune('A'+i%26)) + string(rune('a'+i/26))
		batch = append(batch, p)
	}
	if err := s.Put(ctx, "laptop", "Amazon", batch); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "laptop", "Amazon", 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 30 {
		t.Errorf("got %d rows, want 30", len(got))
	}
}

func TestFetchLogRoundTrip(t *testing.T) {
	// WHAT: Fetch attempts are recorded and listed newest first.
	// WHY: The fetch log is how operators see fallback/cache behavior per vendor.
	s := NewSQLite(openTestDB(t), Config{})
	ctx := context.Background()

	entries := []*FetchLogEntry{
		{ID: "f1", Vendor: "Amazon", Query: "laptop", Outcome: "ok", StatusCode: 200, Records: 12, FetchedAt: 1000},
		{ID: "f2", Vendor: "Amazon", Query: "laptop", Outcome: "fallback", StatusCode: 429, FetchedAt: 2000},
		{ID: "f3", Vendor: "Flipkart", Query: "laptop", Outcome: "cache", FetchedAt: 3000},
	}
	for _, e := range entries {
		if err := s.RecordFetch(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.ID, err)
		}
	}

	history, err := s.FetchHistory(ctx, "Amazon", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d entries, want 2", len(history))
	}
	if history[0].ID != "f2" {
		t.Errorf("order: got %q first, want f2", history[0].ID)
	}
	if history[1].Outcome != "ok" {
		t.Errorf("outcome: got %q", history[1].Outcome)
	}
}

func TestNopStore(t *testing.T) {
	// WHAT: The nop backend always misses and never errors.
	// WHY: Cacheless deployments must behave exactly like a cold cache.
	var s Store = Nop{}
	got, err := s.Get(context.Background(), "laptop", "Amazon", 0, 0)
	if err != nil || got != nil {
		t.Errorf("nop get: %v, %v", got, err)
	}
	if err := s.Put(context.Background(), "laptop", "Amazon", sampleProducts()); err != nil {
		t.Errorf("nop put: %v", err)
	}
}
