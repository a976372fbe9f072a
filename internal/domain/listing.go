package domain

import "strings"

// Listing is a single marketplace result. Score is set by the local
// retriever and nil for items fetched live from the marketplace.
type Listing struct {
	Title     string   `json:"title"`
	Price     *float64 `json:"price"`
	Currency  *string  `json:"currency"`
	URL       string   `json:"url"`
	Condition string   `json:"condition,omitempty"`
	Image     string   `json:"image,omitempty"`
	Score     *float64 `json:"score,omitempty"`
}

// DedupKey identifies a listing across sources: two results with the same
// lowercased, trimmed title and URL are the same listing.
func (l Listing) DedupKey() string {
	return strings.ToLower(strings.TrimSpace(l.Title)) + "\x00" + l.URL
}

// DedupeListings removes duplicate listings, first occurrence wins.
func DedupeListings(items []Listing) []Listing {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		key := it.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}
