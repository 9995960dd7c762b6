package cache

import "database/sql"

// Schema is the complete result-cache schema.
//
// product_cache rows are keyed by (vendor, name, category): the same listing
// re-fetched within the TTL updates prices in place instead of duplicating.
// The category column stores the raw search query, which is the cache key.
const Schema = `
-- Cached vendor listings, one row per (vendor, product, query)
CREATE TABLE IF NOT EXISTS product_cache (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    vendor           TEXT NOT NULL,
    name             TEXT NOT NULL,
    category         TEXT NOT NULL,
    list_price       REAL NOT NULL,
    sale_price       REAL NOT NULL,
    discount_percent REAL NOT NULL,
    rating           REAL NOT NULL DEFAULT 4.0,
    stock            INTEGER NOT NULL DEFAULT 0,
    image_url        TEXT NOT NULL DEFAULT '',
    product_url      TEXT NOT NULL DEFAULT '',
    sku              TEXT NOT NULL DEFAULT '',
    cached_at        INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_product_cache_key ON product_cache(vendor, name, category);
CREATE INDEX IF NOT EXISTS idx_product_cache_lookup ON product_cache(category, vendor, cached_at);

-- Fetch log (observability): one row per vendor fetch per request
CREATE TABLE IF NOT EXISTS fetch_log (
    id            TEXT PRIMARY KEY,
    vendor        TEXT NOT NULL,
    query         TEXT NOT NULL,
    outcome       TEXT NOT NULL,
    status_code   INTEGER NOT NULL DEFAULT 0,
    records       INTEGER NOT NULL DEFAULT 0,
    skipped       INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_vendor ON fetch_log(vendor, fetched_at DESC);
`

// ApplySchema creates all cache tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
