// Package normalize maps loosely-typed vendor payloads into canonical products.
//
// Every vendor nests its listings under different keys and reports prices in
// different shapes (plain numbers, "₹1,29,900", "$399.99"). The Mapping for a
// vendor names the candidate paths and fields to try; normalization applies
// the same acceptance rules to all of them. A record that fails any rule is
// skipped and counted; one bad listing never aborts the batch.
package normalize

import (
	"html"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Product is the canonical listing record shared across the pipeline.
// Immutable after creation.
type Product struct {
	Vendor          string  `json:"vendor"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	ListPrice       float64 `json:"list_price"`
	SalePrice       float64 `json:"sale_price"`
	DiscountPercent float64 `json:"discount_percent"`
	Rating          float64 `json:"rating"`
	Stock           int     `json:"stock"`
	URL             string  `json:"url"`
	ImageURL        string  `json:"image_url,omitempty"`
	SKU             string  `json:"sku"`
	Savings         float64 `json:"savings"`

	// Synthetic marks fallback-generated records so they are never
	// indistinguishable from real vendor data in logs or responses.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Mapping describes where one vendor hides its data inside a search payload.
type Mapping struct {
	// ResultPaths are candidate dot-notation paths to the listing array,
	// tried in order ("data.products", "data", "products"). An empty path
	// means the payload root itself is the array.
	ResultPaths []string `yaml:"result_paths"`

	NameFields      []string `yaml:"name_fields"`
	PriceFields     []string `yaml:"price_fields"`
	ListPriceFields []string `yaml:"list_price_fields"`
	RatingFields    []string `yaml:"rating_fields"`
	ImageFields     []string `yaml:"image_fields"`
	URLFields       []string `yaml:"url_fields"`

	// SKUField is the vendor-native identifier field ("asin", "id").
	SKUField string `yaml:"sku_field"`
	// SKUPrefix prefixes synthesized SKUs when SKUField is absent ("AMZ").
	SKUPrefix string `yaml:"sku_prefix"`

	// ListPriceFactor synthesizes a list price from the sale price when the
	// vendor reports none (or an inconsistent one). Zero picks the default:
	// 1.20, or 1.25 for vendors with no list price field at all.
	ListPriceFactor float64 `yaml:"list_price_factor"`

	// SearchURL is the product URL of last resort, with {query} expanded
	// ("https://www.example.com/search?q={query}").
	SearchURL string `yaml:"search_url"`
}

// Factor returns the effective list-price synthesis factor.
func (m *Mapping) Factor() float64 {
	if m.ListPriceFactor > 0 {
		return m.ListPriceFactor
	}
	if len(m.ListPriceFields) == 0 {
		return 1.25
	}
	return 1.20
}

// Options are the global normalization settings.
type Options struct {
	// ConversionRate converts foreign-currency amounts to the local
	// currency. Default: 82.0.
	ConversionRate float64
	// ShowImages controls whether image URLs are populated at all.
	ShowImages bool
	// MaxPerVendor caps how many raw records are processed per vendor
	// per request. Default: 20.
	MaxPerVendor int
	// MinDiscount is the minimum discount percent a product needs to be
	// materialized. Default: 0 (keep everything).
	MinDiscount float64
}

func (o *Options) defaults() {
	if o.ConversionRate <= 0 {
		o.ConversionRate = 82.0
	}
	if o.MaxPerVendor <= 0 {
		o.MaxPerVendor = 20
	}
}

// Skip reasons aggregated in Stats.
const (
	SkipNotObject     = "not_object"
	SkipShortName     = "short_name"
	SkipBadPrice      = "bad_price"
	SkipPriceRange    = "price_range"
	SkipDiscountRange = "discount_range"
	SkipBelowMinimum  = "below_min_discount"
)

// Stats aggregates per-batch normalization counters for observability.
type Stats struct {
	Seen     int
	Accepted int
	Skipped  map[string]int
}

func (s *Stats) skip(reason string) {
	if s.Skipped == nil {
		s.Skipped = map[string]int{}
	}
	s.Skipped[reason]++
}

// SkippedTotal returns the total number of skipped records.
func (s *Stats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

const (
	maxNameLen   = 200
	minSalePrice = 10.0
	maxSalePrice = 1_000_000.0
	maxDiscount  = 90.0
)

var (
	priceRe  = regexp.MustCompile(`([\d,]+\.?\d*)`)
	ratingRe = regexp.MustCompile(`([\d.]+)`)

	// Vendor names are rendered verbatim in listings; strip any markup a
	// vendor payload smuggles in.
	strict = bluemonday.StrictPolicy()
)

// Records walks the candidate dot-notation paths into a decoded JSON payload
// and returns the first listing array found. Returns nil when no path yields
// an array of objects.
func Records(payload any, paths []string) []map[string]any {
	if len(paths) == 0 {
		paths = []string{""}
	}
	for _, path := range paths {
		items, ok := walkPath(payload, path)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func walkPath(v any, path string) ([]any, bool) {
	current := v
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = obj[part]
			if !ok {
				return nil, false
			}
		}
	}
	arr, ok := current.([]any)
	return arr, ok
}

// Parse converts raw vendor records into canonical Products, applying the
// acceptance rules per record. The returned Stats counts what was skipped
// and why.
func Parse(vendorName, query string, items []map[string]any, m Mapping, opts Options) ([]Product, Stats) {
	opts.defaults()

	var stats Stats
	if len(items) > opts.MaxPerVendor {
		items = items[:opts.MaxPerVendor]
	}

	category := TitleCase(query)
	products := make([]Product, 0, len(items))

	for _, item := range items {
		stats.Seen++

		name := firstString(item, m.NameFields)
		name = strings.TrimSpace(html.UnescapeString(strict.Sanitize(name)))
		if len(name) < 3 {
			stats.skip(SkipShortName)
			continue
		}
		if len(name) > maxNameLen {
			name = name[:maxNameLen]
		}

		salePrice, ok := parsePrice(firstValue(item, m.PriceFields), opts.ConversionRate, true)
		if !ok {
			stats.skip(SkipBadPrice)
			continue
		}
		if salePrice < minSalePrice || salePrice > maxSalePrice {
			stats.skip(SkipPriceRange)
			continue
		}

		listPrice, ok := parsePrice(firstValue(item, m.ListPriceFields), opts.ConversionRate, false)
		if !ok || listPrice <= salePrice {
			listPrice = salePrice * m.Factor()
		}

		discount := round2((listPrice - salePrice) / listPrice * 100)
		if discount < 0 || discount > maxDiscount {
			stats.skip(SkipDiscountRange)
			continue
		}
		if discount < opts.MinDiscount {
			stats.skip(SkipBelowMinimum)
			continue
		}

		imageURL := ""
		if opts.ShowImages {
			imageURL = firstString(item, m.ImageFields)
		}

		productURL := firstString(item, m.URLFields)
		if productURL == "" {
			productURL = strings.ReplaceAll(m.SearchURL, "{query}", strings.ReplaceAll(query, " ", "+"))
		}

		sku := ""
		if m.SKUField != "" {
			sku = asString(item[m.SKUField])
		}
		if sku == "" {
			sku = m.SKUPrefix + strconv.Itoa(1000+rand.IntN(9000))
		}

		p := Product{
			Vendor:          vendorName,
			Name:            name,
			Category:        category,
			ListPrice:       round2(listPrice),
			SalePrice:       round2(salePrice),
			DiscountPercent: discount,
			Rating:          parseRating(firstValue(item, m.RatingFields)),
			Stock:           50 + rand.IntN(151), // vendors rarely report stock
			URL:             productURL,
			ImageURL:        imageURL,
			SKU:             sku,
			Savings:         round2(listPrice - salePrice),
		}

		stats.Accepted++
		products = append(products, p)
	}

	return products, stats
}

// parsePrice extracts the first numeric token (with thousands separators)
// from a mixed value. Amounts carrying a foreign currency symbol (or, when
// convertSmall is set, implausibly small for the local currency, < 100)
// are converted at the fixed rate.
func parsePrice(raw any, rate float64, convertSmall bool) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	s := asString(raw)
	token := priceRe.FindString(s)
	if token == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if strings.Contains(s, "$") || (convertSmall && v < 100) {
		v *= rate
	}
	return v, true
}

// parseRating extracts a rating value, defaulting to 4.0 and clamping to
// [1.0, 5.0].
func parseRating(raw any) float64 {
	rating := 4.0
	if raw != nil {
		if token := ratingRe.FindString(asString(raw)); token != "" {
			if v, err := strconv.ParseFloat(token, 64); err == nil {
				rating = v
			}
		}
	}
	rating = math.Max(1.0, math.Min(5.0, rating))
	return math.Round(rating*10) / 10
}

// TitleCase uppercases the first letter of each space-separated word.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func firstValue(item map[string]any, fields []string) any {
	for _, f := range fields {
		if v, ok := item[f]; ok && v != nil && asString(v) != "" {
			return v
		}
	}
	return nil
}

func firstString(item map[string]any, fields []string) string {
	return asString(firstValue(item, fields))
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
