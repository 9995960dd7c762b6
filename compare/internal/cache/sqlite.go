package cache

import (
	"context"
	"database/sql"
	"time"

	"dealradar/compare/internal/normalize"
	"dealradar/dbopen"
)

// SQLite is the primary cache backend, embedded in the service process.
type SQLite struct {
	db     *sql.DB
	config Config
}

// NewSQLite wraps an already-opened database. The caller is expected to have
// applied the schema (see ApplySchema / dbopen.WithSchema).
func NewSQLite(db *sql.DB, cfg Config) *SQLite {
	cfg.defaults()
	return &SQLite{db: db, config: cfg}
}

// Get returns cached products for (query, vendor) newer than the TTL.
// Price bounds apply to the sale price; the orchestrator's final filter is
// authoritative either way, so bounds here only trim what travels.
func (s *SQLite) Get(ctx context.Context, query, vendor string, minPrice, maxPrice float64) ([]normalize.Product, error) {
	cutoff := time.Now().Add(-s.config.TTL).UnixMilli()

	q := `SELECT name, list_price, sale_price, discount_percent,
		rating, stock, image_url, product_url, sku
		FROM product_cache
		WHERE category = ? AND vendor = ? AND cached_at > ?`
	args := []any{query, vendor, cutoff}

	if minPrice > 0 {
		q += ` AND sale_price >= ?`
		args = append(args, minPrice)
	}
	if maxPrice > 0 {
		q += ` AND sale_price <= ?`
		args = append(args, maxPrice)
	}
	q += ` LIMIT ?`
	args = append(args, maxRows)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []normalize.Product
	for rows.Next() {
		var p normalize.Product
		if err := rows.Scan(&p.Name, &p.ListPrice, &p.SalePrice,
			&p.DiscountPercent, &p.Rating, &p.Stock, &p.ImageURL, &p.URL, &p.SKU); err != nil {
			return nil, err
		}
		p.Vendor = vendor
		p.Category = normalize.TitleCase(query)
		p.Savings = p.ListPrice - p.SalePrice
		if !s.config.ShowImages {
			p.ImageURL = ""
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Put evicts expired rows for (query, vendor) and upserts the batch,
// refreshing prices and the timestamp on conflict. Runs under the BUSY
// retry policy: one goroutine per vendor writes here concurrently.
func (s *SQLite) Put(ctx context.Context, query, vendor string, products []normalize.Product) error {
	now := time.Now().UnixMilli()
	cutoff := time.Now().Add(-s.config.TTL).UnixMilli()

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM product_cache WHERE category = ? AND vendor = ? AND cached_at < ?`,
			query, vendor, cutoff); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO product_cache (vendor, name, category, list_price, sale_price,
			discount_percent, rating, stock, image_url, product_url, sku, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(vendor, name, category) DO UPDATE SET
			list_price = excluded.list_price,
			sale_price = excluded.sale_price,
			discount_percent = excluded.discount_percent,
			cached_at = excluded.cached_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range products {
			if _, err := stmt.ExecContext(ctx, vendor, p.Name, query, p.ListPrice, p.SalePrice,
				p.DiscountPercent, p.Rating, p.Stock, p.ImageURL, p.URL, p.SKU, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordFetch appends one fetch attempt to the log.
func (s *SQLite) RecordFetch(ctx context.Context, e *FetchLogEntry) error {
	if e.FetchedAt == 0 {
		e.FetchedAt = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO fetch_log (id, vendor, query, outcome, status_code, records,
		skipped, error_message, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Vendor, e.Query, e.Outcome, e.StatusCode, e.Records,
		e.Skipped, e.ErrorMessage, e.DurationMs, e.FetchedAt)
	return err
}

// FetchHistory returns fetch log entries for a vendor, newest first.
func (s *SQLite) FetchHistory(ctx context.Context, vendor string, limit int) ([]*FetchLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vendor, query, outcome, status_code, records, skipped,
		error_message, duration_ms, fetched_at
		FROM fetch_log WHERE vendor = ?
		ORDER BY fetched_at DESC LIMIT ?`, vendor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*FetchLogEntry
	for rows.Next() {
		var e FetchLogEntry
		if err := rows.Scan(&e.ID, &e.Vendor, &e.Query, &e.Outcome, &e.StatusCode,
			&e.Records, &e.Skipped, &e.ErrorMessage, &e.DurationMs, &e.FetchedAt); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
