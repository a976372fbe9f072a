package retrieval

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/domain"
)

// Service retrieves candidate listings from the local similarity corpus.
// A missing corpus or a failed embedding degrades to zero results; errors
// never propagate past this component.
type Service struct {
	corpus CorpusSearcher
	embed  domain.Embedder
	filter ListingFilter
	logger *zap.Logger
}

// New creates a retrieval service. corpus may be nil when the artifact is
// absent; the service then always reports zero results and zero confidence.
func New(corpus CorpusSearcher, embed domain.Embedder, filter ListingFilter, logger *zap.Logger) *Service {
	return &Service{corpus: corpus, embed: embed, filter: filter, logger: logger}
}

// Search embeds text and returns up to k corpus listings with score >=
// threshold that pass the domain filter, descending score. The second return
// is the maximum score over the unfiltered top-k set: the confidence signal
// must be computed before filtering so an aggressive filter cannot starve the
// fallback decision.
func (s *Service) Search(ctx context.Context, text string, k int, threshold float64) ([]domain.Listing, float64) {
	if s.corpus == nil || s.corpus.Len() == 0 {
		return nil, 0.0
	}

	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("query embedding failed, degrading to fallback-only",
			zap.String("query", text), zap.Error(err))
		return nil, 0.0
	}

	hits := s.corpus.Search(emb.Embedding, k)
	if len(hits) == 0 {
		return nil, 0.0
	}

	maxScore := hits[0].Score

	results := make([]domain.Listing, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < threshold {
			continue
		}
		if !s.filter.AllowsListing(hit.Item.Title, text) {
			continue
		}
		results = append(results, listingFromHit(hit))
	}

	return results, maxScore
}

// listingFromHit maps a catalog row onto a Listing, pulling the optional
// price/url/condition/image fields out of the row metadata.
func listingFromHit(hit domain.CatalogHit) domain.Listing {
	score := hit.Score
	l := domain.Listing{
		Title: hit.Item.Title,
		Score: &score,
	}

	meta := hit.Item.Metadata
	if meta == nil {
		return l
	}

	l.URL = meta["url"]
	l.Condition = meta["condition"]
	l.Image = meta["image"]

	if raw := meta["price"]; raw != "" {
		if price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && price >= 0 {
			l.Price = &price
		}
	}
	if cur := strings.ToUpper(strings.TrimSpace(meta["currency"])); len(cur) == 3 {
		l.Currency = &cur
	}

	return l
}
