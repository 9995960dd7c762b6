package compare

import (
	"math"
	"strings"

	"dealradar/compare/internal/match"
)

// Relevance filtering. Vendor search APIs happily pad results with
// accessories and unrelated items; scoring each product against the query
// tokens trims them. Filtering is soft: it degrades to a looser threshold,
// and finally to no filtering, before it would return an empty list.

// fuzzyThreshold is the minimum normalized similarity for a token to count
// as a fuzzy match against a field.
const fuzzyThreshold = 0.72

// stopwords are query words too generic to discriminate between products.
// Category nouns are included: in "gaming laptop" the word "laptop" matches
// half the vendor's catalog, "gaming" is the signal.
var stopwords = map[string]struct{}{
	"laptop": {}, "laptops": {}, "notebook": {}, "pc": {},
	"computer": {}, "computers": {},
	"mobile": {}, "phone": {}, "device": {},
	"watch": {}, "watches": {},
	"shoe": {}, "shoes": {},
	"headphone": {}, "headphones": {},
	"earphone": {}, "earphones": {},
}

// queryTokens lowercases and splits the query, dropping stopwords and
// single-character fragments.
func queryTokens(query string) []string {
	var tokens []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?:;\"'()")
		if len(w) < 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// tokenMatches reports whether the token appears in the field, exactly or
// within the fuzzy threshold.
func tokenMatches(token, field string) bool {
	if strings.Contains(field, token) {
		return true
	}
	return match.Similarity(token, field) >= fuzzyThreshold
}

// relevanceScore weighs a product against the query tokens: a name match
// counts double, vendor and category matches count single.
func relevanceScore(p Product, tokens []string) int {
	name := strings.ToLower(p.Name)
	vendorName := strings.ToLower(p.Vendor)
	category := strings.ToLower(p.Category)

	score := 0
	for _, tok := range tokens {
		if tokenMatches(tok, name) {
			score += 2
		}
		if tokenMatches(tok, vendorName) {
			score++
		}
		if tokenMatches(tok, category) {
			score++
		}
	}
	return score
}

// filterRelevant keeps the products that score against the query. Strict
// pass first (40% of tokens, rounded up); if that empties the list, any
// positive score counts; if even that empties it, the list passes through
// unfiltered. Availability beats precision here.
func filterRelevant(products []Product, query string) []Product {
	tokens := queryTokens(query)
	if len(tokens) == 0 || len(products) == 0 {
		return products
	}

	minScore := int(math.Ceil(0.4 * float64(len(tokens))))
	if minScore < 1 {
		minScore = 1
	}

	strict := make([]Product, 0, len(products))
	soft := make([]Product, 0, len(products))
	for _, p := range products {
		score := relevanceScore(p, tokens)
		if score >= minScore {
			strict = append(strict, p)
		}
		if score >= 1 {
			soft = append(soft, p)
		}
	}

	if len(strict) > 0 {
		return strict
	}
	if len(soft) > 0 {
		return soft
	}
	return products
}
