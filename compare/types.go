package compare

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"dealradar/compare/internal/cache"
	"dealradar/compare/internal/metrics"
	"dealradar/compare/internal/normalize"
	"dealradar/compare/internal/vendor"
)

// Aliases for the internal pipeline types that appear in the public API.

// Product is the canonical listing record.
type Product = normalize.Product

// VendorSpec describes one vendor's search API.
type VendorSpec = vendor.Spec

// Mapping describes where a vendor payload hides its listings.
type Mapping = normalize.Mapping

// Cache is the result cache contract.
type Cache = cache.Store

// FetchLog records vendor fetch attempts.
type FetchLog = cache.FetchLogger

// FetchLogEntry is one recorded fetch attempt.
type FetchLogEntry = cache.FetchLogEntry

// SQLiteCache is the embedded cache backend. It also implements FetchLog.
type SQLiteCache = cache.SQLite

// RedisCache is the shared cache backend.
type RedisCache = cache.Redis

// Metrics is the prometheus registry for the pipeline.
type Metrics = metrics.Registry

// NewMetrics creates and registers the pipeline metrics.
func NewMetrics() *Metrics { return metrics.NewRegistry() }

// LoadVendorSpecs reads vendor specs from a YAML file.
func LoadVendorSpecs(path string) ([]VendorSpec, error) { return vendor.LoadSpecs(path) }

// DefaultVendorSpecs returns the built-in vendor set.
func DefaultVendorSpecs() []VendorSpec { return vendor.DefaultSpecs() }

// ApplyCacheSchema creates the cache tables if they do not exist.
func ApplyCacheSchema(db *sql.DB) error { return cache.ApplySchema(db) }

// NewSQLiteCache wraps an opened database as a result cache, taking the
// TTL and image policy from cfg.
func NewSQLiteCache(db *sql.DB, cfg Config) *SQLiteCache {
	cfg.defaults()
	return cache.NewSQLite(db, cache.Config{TTL: cfg.CacheTTL, ShowImages: cfg.ShowImages})
}

// NewRedisCache wraps a connected redis client as a result cache.
func NewRedisCache(client *redis.Client, cfg Config) *RedisCache {
	cfg.defaults()
	return cache.NewRedis(client, cache.Config{TTL: cfg.CacheTTL, ShowImages: cfg.ShowImages})
}
