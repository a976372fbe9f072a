package reconcile

import (
	"context"

	"github.com/kailas-cloud/medfind/internal/domain"
)

// Retriever searches the local similarity corpus. It never fails: degraded
// states report zero results and zero confidence.
type Retriever interface {
	Search(ctx context.Context, text string, k int, threshold float64) ([]domain.Listing, float64)
}

// Fallback queries the live marketplace.
type Fallback interface {
	Fetch(ctx context.Context, text string, limit int) ([]domain.Listing, error)
}

// ListingFilter decides whether a listing title passes the domain filter for
// a given query text.
type ListingFilter interface {
	AllowsListing(title, query string) bool
}
