package compare

import (
	"math"
	"sort"
)

// Sort orders for Request.SortBy.
const (
	SortByPrice    = "price"    // sale price ascending (default)
	SortByDiscount = "discount" // discount percent descending
)

// PlatformStats summarizes one vendor's products in a comparison result.
type PlatformStats struct {
	ProductCount    int     `json:"product_count"`
	AvgPrice        float64 `json:"avg_price"`
	AvgDiscount     float64 `json:"avg_discount"`
	LowestPrice     float64 `json:"lowest_price"`
	HighestDiscount float64 `json:"highest_discount"`
	TotalSavings    float64 `json:"total_savings"`
}

// Result is a completed comparison.
type Result struct {
	Query    string    `json:"query"`
	Products []Product `json:"products"`

	// TotalCount is the number of products that survived filtering.
	TotalCount int `json:"total_count"`

	// VendorCounts reports how many products each vendor returned before
	// filtering, so a vendor serving nothing is visible even when another
	// vendor dominates the merged list.
	VendorCounts map[string]int `json:"vendor_counts"`

	BestDeal        *Product                 `json:"best_deal,omitempty"`
	HighestDiscount *Product                 `json:"highest_discount,omitempty"`
	PlatformStats   map[string]PlatformStats `json:"platform_stats,omitempty"`

	// BestPlatform is the vendor with the highest average discount.
	BestPlatform string `json:"best_platform,omitempty"`
}

// sortProducts orders products in place. Ties keep their merge order, so
// repeated comparisons render identically.
func sortProducts(products []Product, sortBy string) {
	switch sortBy {
	case SortByDiscount:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].DiscountPercent > products[j].DiscountPercent
		})
	default:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].SalePrice < products[j].SalePrice
		})
	}
}

// buildResult computes the aggregates over the final product list.
// Best-deal and highest-discount ties go to the earlier product; the best
// platform tie goes to the alphabetically first vendor, keeping results
// deterministic.
func buildResult(query string, products []Product, vendorCounts map[string]int) *Result {
	r := &Result{
		Query:        query,
		Products:     products,
		TotalCount:   len(products),
		VendorCounts: vendorCounts,
	}
	if len(products) == 0 {
		return r
	}

	best := 0
	highest := 0
	type accum struct {
		count                        int
		sumPrice, sumDiscount        float64
		lowestPrice, highestDiscount float64
		totalSavings                 float64
	}
	byVendor := map[string]*accum{}

	for i, p := range products {
		if p.SalePrice < products[best].SalePrice {
			best = i
		}
		if p.DiscountPercent > products[highest].DiscountPercent {
			highest = i
		}

		a, ok := byVendor[p.Vendor]
		if !ok {
			a = &accum{lowestPrice: p.SalePrice}
			byVendor[p.Vendor] = a
		}
		a.count++
		a.sumPrice += p.SalePrice
		a.sumDiscount += p.DiscountPercent
		a.totalSavings += p.Savings
		if p.SalePrice < a.lowestPrice {
			a.lowestPrice = p.SalePrice
		}
		if p.DiscountPercent > a.highestDiscount {
			a.highestDiscount = p.DiscountPercent
		}
	}

	bestDeal := products[best]
	highestDiscount := products[highest]
	r.BestDeal = &bestDeal
	r.HighestDiscount = &highestDiscount

	r.PlatformStats = make(map[string]PlatformStats, len(byVendor))
	names := make([]string, 0, len(byVendor))
	for name, a := range byVendor {
		names = append(names, name)
		r.PlatformStats[name] = PlatformStats{
			ProductCount:    a.count,
			AvgPrice:        round2(a.sumPrice / float64(a.count)),
			AvgDiscount:     round2(a.sumDiscount / float64(a.count)),
			LowestPrice:     a.lowestPrice,
			HighestDiscount: a.highestDiscount,
			TotalSavings:    round2(a.totalSavings),
		}
	}

	sort.Strings(names)
	for _, name := range names {
		if r.BestPlatform == "" || r.PlatformStats[name].AvgDiscount > r.PlatformStats[r.BestPlatform].AvgDiscount {
			r.BestPlatform = name
		}
	}
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
