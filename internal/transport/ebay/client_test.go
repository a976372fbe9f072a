package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/domain"
)

// --- Mocks ---

type mockTokens struct {
	token string
	err   error
}

func (m *mockTokens) Token(_ context.Context, _ bool) (string, error) {
	return m.token, m.err
}

type browseItem struct {
	title, url, price, currency string
}

func browsePayload(items ...browseItem) []byte {
	type price struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	}
	type summary struct {
		Title      string `json:"title"`
		Price      price  `json:"price"`
		ItemWebURL string `json:"itemWebUrl"`
	}
	var payload struct {
		ItemSummaries []summary `json:"itemSummaries"`
	}
	for _, it := range items {
		payload.ItemSummaries = append(payload.ItemSummaries, summary{
			Title:      it.title,
			Price:      price{Value: it.price, Currency: it.currency},
			ItemWebURL: it.url,
		})
	}
	data, _ := json.Marshal(payload)
	return data
}

func newTestClient(browseURL string, categories []string) *Client {
	return NewClient(Config{
		BrowseURL:  browseURL,
		Categories: categories,
	}, &mockTokens{token: "tok"}, zap.NewNop())
}

// --- Tests ---

func TestFetchAggregatesCategoryAndGeneralQueries(t *testing.T) {
	var categorySets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		cat := r.URL.Query().Get("category_ids")
		categorySets = append(categorySets, cat)
		_, _ = w.Write(browsePayload(browseItem{
			title: "Item " + cat, url: "https://x/" + cat, price: "10.00", currency: "USD",
		}))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, []string{"11815", "177646"})

	items, err := client.Fetch(context.Background(), "thermometer", 20)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Two category queries plus the general unscoped one.
	if len(categorySets) != 3 {
		t.Fatalf("made %d browse calls, want 3", len(categorySets))
	}
	if categorySets[0] != "11815" || categorySets[1] != "177646" || categorySets[2] != "" {
		t.Errorf("category order = %v", categorySets)
	}
	if len(items) != 3 {
		t.Errorf("got %d items, want 3", len(items))
	}
}

func TestFetchCleansQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write(browsePayload())
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)

	if _, err := client.Fetch(context.Background(), "Recommend best cheap thermometer", 20); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotQuery != "thermometer" {
		t.Errorf("q = %q, want %q", gotQuery, "thermometer")
	}
}

func TestFetchTokenErrorBeforeNetwork(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := NewClient(Config{BrowseURL: srv.URL}, &mockTokens{
		err: fmt.Errorf("credentials missing: %w", domain.ErrAuth),
	}, zap.NewNop())

	_, err := client.Fetch(context.Background(), "thermometer", 20)
	if !errors.Is(err, domain.ErrAuth) {
		t.Errorf("err = %v, want domain.ErrAuth", err)
	}
	if calls != 0 {
		t.Errorf("browse endpoint hit %d times before auth resolved", calls)
	}
}

func TestFetchPartialFailureTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category_ids") == "broken" {
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		_, _ = w.Write(browsePayload(browseItem{title: "Gauze", url: "https://x/1", price: "3.50", currency: "USD"}))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, []string{"broken", "11815"})

	items, err := client.Fetch(context.Background(), "gauze", 20)
	if err != nil {
		t.Fatalf("Fetch with one failing category: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1 (deduped across surviving calls)", len(items))
	}
}

func TestFetchAllQueriesFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, []string{"11815"})

	_, err := client.Fetch(context.Background(), "gauze", 20)
	if !errors.Is(err, domain.ErrFetch) {
		t.Errorf("err = %v, want domain.ErrFetch", err)
	}
}

func TestFetchDedupesAcrossQueries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Every call returns the same item.
		_, _ = w.Write(browsePayload(browseItem{title: "Splint", url: "https://x/1", price: "8.00", currency: "USD"}))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, []string{"a", "b", "c"})

	items, err := client.Fetch(context.Background(), "splint", 20)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1 after dedup", len(items))
	}
}

func TestFetchCapsAtLimit(t *testing.T) {
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n++
		_, _ = w.Write(browsePayload(
			browseItem{title: fmt.Sprintf("Item %d-a", n), url: fmt.Sprintf("https://x/%d-a", n)},
			browseItem{title: fmt.Sprintf("Item %d-b", n), url: fmt.Sprintf("https://x/%d-b", n)},
		))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, []string{"a", "b", "c"})

	items, err := client.Fetch(context.Background(), "splint", 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("got %d items, want exactly the limit of 3", len(items))
	}
}

func TestFetchPriceParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(browsePayload(
			browseItem{title: "Priced", url: "https://x/1", price: "19.99", currency: "EUR"},
			browseItem{title: "No currency", url: "https://x/2", price: "5.00"},
			browseItem{title: "Unpriced", url: "https://x/3"},
		))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)

	items, err := client.Fetch(context.Background(), "anything", 20)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	byTitle := map[string]domain.Listing{}
	for _, it := range items {
		byTitle[it.Title] = it
	}

	if p := byTitle["Priced"]; p.Price == nil || *p.Price != 19.99 || p.Currency == nil || *p.Currency != "EUR" {
		t.Errorf("Priced item = %+v", p)
	}
	if p := byTitle["No currency"]; p.Price == nil || *p.Price != 5.00 || p.Currency == nil || *p.Currency != "USD" {
		t.Errorf("No-currency item should default to USD: %+v", p)
	}
	if p := byTitle["Unpriced"]; p.Price != nil || p.Currency != nil {
		t.Errorf("Unpriced item should carry nil price: %+v", p)
	}
}

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Recommend best cheap thermometer", "thermometer"},
		{"show find buy", "show find buy"}, // all filler falls back to the raw text
		{"  wheelchair  ", "wheelchair"},
	}
	for _, tt := range tests {
		if got := cleanQuery(tt.in); got != tt.want {
			t.Errorf("cleanQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
