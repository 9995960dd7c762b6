package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"dealradar/compare/internal/normalize"
)

// Redis caches listings in a shared Redis instance, one JSON-encoded list
// per (vendor, query) key with a TTL.
//
// Put replaces the whole list for the key. That is weaker than the SQLite
// backend's row-level upsert, but every Put carries the full normalized
// batch for its (query, vendor), so replacement keeps the same contents.
type Redis struct {
	client *redis.Client
	config Config
}

// NewRedis wraps an already-connected client.
func NewRedis(client *redis.Client, cfg Config) *Redis {
	cfg.defaults()
	return &Redis{client: client, config: cfg}
}

func (r *Redis) key(query, vendor string) string {
	return "dealradar:cache:" + strings.ToLower(vendor) + ":" + strings.ToLower(query)
}

// Get returns cached products for (query, vendor). Expiry is delegated to
// the key TTL; price bounds and the row cap are applied on read.
func (r *Redis) Get(ctx context.Context, query, vendor string, minPrice, maxPrice float64) ([]normalize.Product, error) {
	raw, err := r.client.Get(ctx, r.key(query, vendor)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached []normalize.Product
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}

	products := make([]normalize.Product, 0, len(cached))
	for _, p := range cached {
		if !inBounds(p.SalePrice, minPrice, maxPrice) {
			continue
		}
		if !r.config.ShowImages {
			p.ImageURL = ""
		}
		products = append(products, p)
		if len(products) == maxRows {
			break
		}
	}
	return products, nil
}

// Put stores the batch under the (query, vendor) key with the cache TTL.
func (r *Redis) Put(ctx context.Context, query, vendor string, products []normalize.Product) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(query, vendor), raw, r.config.TTL).Err()
}
