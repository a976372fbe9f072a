package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/domain"
)

// --- Mocks ---

type mockCorpus struct {
	hits []domain.CatalogHit
}

func (m *mockCorpus) Search(_ []float32, k int) []domain.CatalogHit {
	if k < len(m.hits) {
		return m.hits[:k]
	}
	return m.hits
}

func (m *mockCorpus) Len() int { return len(m.hits) }

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	return domain.EmbeddingResult{Embedding: m.vec}, m.err
}

type allowAll struct{}

func (allowAll) AllowsListing(_, _ string) bool { return true }

type allowNone struct{}

func (allowNone) AllowsListing(_, _ string) bool { return false }

func hit(id, title string, score float64, meta map[string]string) domain.CatalogHit {
	return domain.CatalogHit{
		Item:  domain.CatalogItem{ID: id, Title: title, Metadata: meta},
		Score: score,
	}
}

// --- Tests ---

func TestSearchNilCorpus(t *testing.T) {
	emb := &mockEmbedder{}
	svc := New(nil, emb, allowAll{}, zap.NewNop())

	results, maxScore := svc.Search(context.Background(), "thermometer", 15, 0.65)
	if results != nil || maxScore != 0 {
		t.Errorf("Search with nil corpus = (%v, %g), want (nil, 0)", results, maxScore)
	}
	if emb.called {
		t.Error("embedder called despite nil corpus")
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	svc := New(&mockCorpus{}, &mockEmbedder{}, allowAll{}, zap.NewNop())

	results, maxScore := svc.Search(context.Background(), "thermometer", 15, 0.65)
	if results != nil || maxScore != 0 {
		t.Errorf("Search with empty corpus = (%v, %g), want (nil, 0)", results, maxScore)
	}
}

func TestSearchEmbedErrorDegrades(t *testing.T) {
	corpus := &mockCorpus{hits: []domain.CatalogHit{hit("1", "Thermometer", 0.9, nil)}}
	emb := &mockEmbedder{err: errors.New("provider down")}
	svc := New(corpus, emb, allowAll{}, zap.NewNop())

	results, maxScore := svc.Search(context.Background(), "thermometer", 15, 0.65)
	if results != nil || maxScore != 0 {
		t.Errorf("Search with failing embedder = (%v, %g), want (nil, 0)", results, maxScore)
	}
}

func TestSearchMaxScoreBeforeFiltering(t *testing.T) {
	// The top hit fails the domain filter, but the confidence signal must
	// still reflect its score.
	corpus := &mockCorpus{hits: []domain.CatalogHit{
		hit("1", "Gaming Mouse", 0.91, nil),
		hit("2", "Thermometer", 0.70, nil),
	}}
	svc := New(corpus, &mockEmbedder{vec: []float32{1}}, allowNone{}, zap.NewNop())

	results, maxScore := svc.Search(context.Background(), "thermometer", 15, 0.65)
	if len(results) != 0 {
		t.Errorf("got %d results past an allow-nothing filter", len(results))
	}
	if maxScore != 0.91 {
		t.Errorf("maxScore = %g, want 0.91 (computed before filtering)", maxScore)
	}
}

func TestSearchThresholdFilter(t *testing.T) {
	corpus := &mockCorpus{hits: []domain.CatalogHit{
		hit("1", "Digital Thermometer", 0.90, map[string]string{"url": "https://example.com/1"}),
		hit("2", "Ear Thermometer", 0.64, nil),
	}}
	svc := New(corpus, &mockEmbedder{vec: []float32{1}}, allowAll{}, zap.NewNop())

	results, maxScore := svc.Search(context.Background(), "thermometer", 15, 0.65)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (below-threshold hit dropped)", len(results))
	}
	if results[0].Title != "Digital Thermometer" {
		t.Errorf("kept %q, want the above-threshold hit", results[0].Title)
	}
	if maxScore != 0.90 {
		t.Errorf("maxScore = %g, want 0.90", maxScore)
	}
}

func TestSearchListingFields(t *testing.T) {
	corpus := &mockCorpus{hits: []domain.CatalogHit{
		hit("1", "Pulse Oximeter", 0.88, map[string]string{
			"price":     "29.99",
			"currency":  "usd",
			"url":       "https://example.com/ox",
			"condition": "New",
			"image":     "https://example.com/ox.jpg",
		}),
	}}
	svc := New(corpus, &mockEmbedder{vec: []float32{1}}, allowAll{}, zap.NewNop())

	results, _ := svc.Search(context.Background(), "pulse oximeter", 15, 0.65)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	l := results[0]
	if l.Price == nil || *l.Price != 29.99 {
		t.Errorf("Price = %v, want 29.99", l.Price)
	}
	if l.Currency == nil || *l.Currency != "USD" {
		t.Errorf("Currency = %v, want USD", l.Currency)
	}
	if l.URL != "https://example.com/ox" {
		t.Errorf("URL = %q", l.URL)
	}
	if l.Condition != "New" {
		t.Errorf("Condition = %q", l.Condition)
	}
	if l.Score == nil || *l.Score != 0.88 {
		t.Errorf("Score = %v, want 0.88", l.Score)
	}
}

func TestSearchMalformedPriceMetadata(t *testing.T) {
	corpus := &mockCorpus{hits: []domain.CatalogHit{
		hit("1", "Bandage Roll", 0.80, map[string]string{"price": "n/a", "url": "https://example.com/b"}),
	}}
	svc := New(corpus, &mockEmbedder{vec: []float32{1}}, allowAll{}, zap.NewNop())

	results, _ := svc.Search(context.Background(), "bandage", 15, 0.65)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Price != nil {
		t.Errorf("Price = %v, want nil for unparseable metadata", *results[0].Price)
	}
}
