package medfind

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/medfind/internal/domain"
)

// Listing is a single search result.
type Listing = domain.Listing

// StructuredQuery is the interpreted form of the raw query text.
type StructuredQuery = domain.StructuredQuery

// SearchResult is the response of the full hybrid search pipeline.
type SearchResult struct {
	Query      string          `json:"query"`
	Structured StructuredQuery `json:"structured"`
	Limit      int             `json:"limit"`
	Results    []Listing       `json:"results"`
}

// LiveResult is the response of a direct marketplace search.
type LiveResult struct {
	Query   string    `json:"query"`
	Limit   int       `json:"limit"`
	Results []Listing `json:"results"`
}

// Health is the service health report.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("medfind: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Unwrap maps well-known API error codes onto sentinel errors so callers can
// use errors.Is.
func (e *APIError) Unwrap() error {
	if e.Code == "validation_failed" {
		return domain.ErrEmptyQuery
	}
	return nil
}

// Client is the medfind API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client for the medfind service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c
}

// Search runs the full pipeline: query interpretation, local retrieval and
// the marketplace fallback.
func (c *Client) Search(ctx context.Context, query string, opts ...RequestOption) (SearchResult, error) {
	var out SearchResult
	err := c.get(ctx, "/api/search", query, opts, &out)
	return out, err
}

// Live queries the marketplace directly with the raw text, bypassing
// interpretation and local retrieval.
func (c *Client) Live(ctx context.Context, query string, opts ...RequestOption) (LiveResult, error) {
	var out LiveResult
	err := c.get(ctx, "/api/live", query, opts, &out)
	return out, err
}

// HealthCheck reports service health.
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	var out Health
	err := c.get(ctx, "/health", "", nil, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path, query string, opts []RequestOption, out any) error {
	var ro requestOptions
	for _, o := range opts {
		o(&ro)
	}

	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if ro.limit > 0 {
		params.Set("limit", strconv.Itoa(ro.limit))
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
