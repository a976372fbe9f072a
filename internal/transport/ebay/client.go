package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/domain"
	"github.com/kailas-cloud/medfind/internal/metrics"
)

// TokenProvider supplies marketplace bearer tokens.
type TokenProvider interface {
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// Config holds Browse API settings for the fallback client.
type Config struct {
	BrowseURL  string
	Categories []string
	Timeout    time.Duration
}

// Client queries the eBay Browse API when local retrieval is weak. Per-call
// failures degrade to zero items from that call; only a fully failed fetch
// surfaces an error.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     TokenProvider
	breaker    *gobreaker.CircuitBreaker[[]domain.Listing]
	logger     *zap.Logger
}

// NewClient creates a marketplace fallback client.
func NewClient(cfg Config, tokens TokenProvider, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[[]domain.Listing](gobreaker.Settings{
		Name:    "ebay-browse",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		breaker:    breaker,
		logger:     logger,
	}
}

// Callers usually pass the interpreter's cleaned query, but Fetch must not
// assume it: live search feeds raw text straight in.
var fillerRegex = regexp.MustCompile(`\b(give me|suggest|show|find|best|recommend|buy|cheap)\b`)

func cleanQuery(text string) string {
	cleaned := fillerRegex.ReplaceAllString(strings.ToLower(text), " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return strings.TrimSpace(text)
	}
	return cleaned
}

// Fetch runs one Browse query per configured category plus one unscoped
// general query, aggregates the results, dedupes by (title, url) and caps the
// output at limit. A missing token wraps domain.ErrAuth before any network
// call; all queries failing wraps domain.ErrFetch.
func (c *Client) Fetch(ctx context.Context, text string, limit int) ([]domain.Listing, error) {
	query := cleanQuery(text)

	token, err := c.tokens.Token(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("obtain marketplace token: %w", err)
	}

	var (
		all       []domain.Listing
		succeeded int
		attempted int
	)

	run := func(kind, categoryID string) {
		attempted++
		items, err := c.browse(ctx, token, query, categoryID, limit)
		if err != nil {
			metrics.MarketplaceRequestsTotal.WithLabelValues(kind, "error").Inc()
			c.logger.Warn("marketplace query failed",
				zap.String("kind", kind),
				zap.String("category", categoryID),
				zap.String("query", query),
				zap.Error(err))
			return
		}
		metrics.MarketplaceRequestsTotal.WithLabelValues(kind, "success").Inc()
		succeeded++
		all = append(all, items...)
	}

	for _, categoryID := range c.cfg.Categories {
		run("category", categoryID)
	}
	run("general", "")

	if succeeded == 0 {
		return nil, fmt.Errorf("all %d marketplace queries failed: %w", attempted, domain.ErrFetch)
	}

	all = domain.DedupeListings(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// browseResponse mirrors the Browse API item_summary search payload.
type browseResponse struct {
	ItemSummaries []struct {
		Title string `json:"title"`
		Price struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
		ItemWebURL string `json:"itemWebUrl"`
		Condition  string `json:"condition"`
		Image      struct {
			ImageURL string `json:"imageUrl"`
		} `json:"image"`
	} `json:"itemSummaries"`
}

// browse issues one Browse API call through the circuit breaker, with a
// bounded per-call timeout.
func (c *Client) browse(
	ctx context.Context, token, query, categoryID string, limit int,
) ([]domain.Listing, error) {
	return c.breaker.Execute(func() ([]domain.Listing, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()

		params := url.Values{
			"q":     {query},
			"limit": {strconv.Itoa(limit)},
		}
		if categoryID != "" {
			params.Set("category_ids", categoryID)
		}

		req, err := http.NewRequestWithContext(
			callCtx, http.MethodGet, c.cfg.BrowseURL+"?"+params.Encode(), nil,
		)
		if err != nil {
			return nil, fmt.Errorf("create browse request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("browse request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return nil, fmt.Errorf("browse status %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}

		var parsed browseResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("decode browse response: %w", err)
		}

		listings := make([]domain.Listing, 0, len(parsed.ItemSummaries))
		for _, it := range parsed.ItemSummaries {
			l := domain.Listing{
				Title:     it.Title,
				URL:       it.ItemWebURL,
				Condition: it.Condition,
				Image:     it.Image.ImageURL,
			}
			if price, err := strconv.ParseFloat(it.Price.Value, 64); err == nil && price >= 0 {
				l.Price = &price
				currency := it.Price.Currency
				if currency == "" {
					currency = "USD"
				}
				l.Currency = &currency
			}
			listings = append(listings, l)
		}
		return listings, nil
	})
}
