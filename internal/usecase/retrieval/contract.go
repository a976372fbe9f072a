package retrieval

import (
	"github.com/kailas-cloud/medfind/internal/domain"
)

// CorpusSearcher is the read-only similarity index contract.
type CorpusSearcher interface {
	Search(vector []float32, k int) []domain.CatalogHit
	Len() int
}

// ListingFilter decides whether a catalog title passes the domain filter for
// a given query text.
type ListingFilter interface {
	AllowsListing(title, query string) bool
}
