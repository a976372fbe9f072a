package reconcile

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/domain"
	"github.com/kailas-cloud/medfind/internal/metrics"
)

// Static approximate conversion rates to USD for price-ceiling comparison.
// Not live FX; unknown codes fall back to a 1:1 rate.
var currencyRates = map[string]float64{
	"USD": 1.0,
	"PKR": 0.0032,
	"EUR": 1.05,
	"GBP": 1.20,
	"INR": 0.012,
}

// Options tune the reconciliation pipeline.
type Options struct {
	TopK                int
	ScoreThreshold      float64
	ConfidenceThreshold float64
}

// Service orchestrates local retrieval and the marketplace fallback, then
// filters, deduplicates and truncates the combined result set.
type Service struct {
	retriever Retriever
	fallback  Fallback
	filter    ListingFilter
	opts      Options
	logger    *zap.Logger
}

// New creates a reconciler.
func New(retriever Retriever, fallback Fallback, filter ListingFilter, opts Options, logger *zap.Logger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 15
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = 0.65
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.65
	}
	return &Service{retriever: retriever, fallback: fallback, filter: filter, opts: opts, logger: logger}
}

// Reconcile never fails: fallback errors degrade the request to local-only
// results. Output is local results first (descending score), then filtered
// fallback results, deduplicated by (title, url) with first occurrence
// winning, truncated to limit.
func (s *Service) Reconcile(ctx context.Context, sq domain.StructuredQuery, limit int) []domain.Listing {
	local, maxScore := s.retriever.Search(ctx, sq.Query, s.opts.TopK, s.opts.ScoreThreshold)
	if len(local) > limit {
		local = local[:limit]
	}

	results := local
	if reason := s.fallbackReason(local, maxScore); reason != "" {
		metrics.FallbackTriggeredTotal.WithLabelValues(reason).Inc()
		results = append(results, s.fetchFallback(ctx, sq, limit)...)
	}

	results = validListings(results)
	results = domain.DedupeListings(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// fallbackReason returns why the live marketplace should be queried, or ""
// when local retrieval is sufficient.
func (s *Service) fallbackReason(local []domain.Listing, maxScore float64) string {
	if len(local) < 1 {
		return "no_local_results"
	}
	if maxScore < s.opts.ConfidenceThreshold {
		return "low_confidence"
	}
	return ""
}

// fetchFallback queries the marketplace and filters its items against the
// structured query. Auth and fetch failures are logged and absorbed: the
// fallback then simply contributed zero items.
func (s *Service) fetchFallback(ctx context.Context, sq domain.StructuredQuery, limit int) []domain.Listing {
	items, err := s.fallback.Fetch(ctx, sq.Query, limit)
	if err != nil {
		s.logger.Warn("marketplace fallback yielded no items",
			zap.String("query", sq.Query), zap.Error(err))
		return nil
	}

	kept := items[:0:0]
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" || it.URL == "" {
			continue
		}
		if sq.MaxPrice != nil && !withinPriceCeiling(it, *sq.MaxPrice, sq.Currency) {
			continue
		}
		if sq.IsMedical && !s.filter.AllowsListing(it.Title, sq.Query) {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

// withinPriceCeiling compares the item price against the user ceiling in a
// common unit via the static rate table. An item without a known price is
// excluded once a ceiling is set.
func withinPriceCeiling(it domain.Listing, maxPrice float64, currency *string) bool {
	if it.Price == nil {
		return false
	}
	return toUSD(*it.Price, it.Currency) <= toUSD(maxPrice, currency)
}

func toUSD(amount float64, currency *string) float64 {
	code := "USD"
	if currency != nil && *currency != "" {
		code = strings.ToUpper(*currency)
	}
	rate, ok := currencyRates[code]
	if !ok {
		rate = 1.0
	}
	return amount * rate
}

// validListings drops items with an empty title or url regardless of source.
func validListings(items []domain.Listing) []domain.Listing {
	out := items[:0:0]
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" || it.URL == "" {
			continue
		}
		out = append(out, it)
	}
	return out
}
