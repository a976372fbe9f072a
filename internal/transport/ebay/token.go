package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/domain"
	"github.com/kailas-cloud/medfind/internal/metrics"
)

// TokenConfig holds OAuth settings for the marketplace identity endpoint.
type TokenConfig struct {
	OAuthURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenFile    string
	Timeout      time.Duration
}

// TokenSource obtains and caches marketplace bearer tokens. The cached token
// is mutable shared state: a read that finds no usable token triggers a
// synchronous refresh, and concurrent refreshes resolve last-writer-wins.
type TokenSource struct {
	cfg        TokenConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	token string
}

// NewTokenSource creates a token source.
func NewTokenSource(cfg TokenConfig, logger *zap.Logger) *TokenSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TokenSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// tokenSnapshot is the persisted shape of an issued token.
type tokenSnapshot struct {
	AccessToken string `json:"access_token"`
}

// Token returns a bearer token, refreshing when forceRefresh is set or no
// cached token exists. Failure to obtain a token wraps domain.ErrAuth.
func (t *TokenSource) Token(ctx context.Context, forceRefresh bool) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !forceRefresh {
		if t.token != "" {
			return t.token, nil
		}
		if tok := t.readSnapshot(); tok != "" {
			t.token = tok
			return tok, nil
		}
	}

	tok, err := t.refresh(ctx)
	if err != nil {
		metrics.MarketplaceTokenRefreshTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.MarketplaceTokenRefreshTotal.WithLabelValues("success").Inc()

	t.token = tok
	t.writeSnapshot(tok)
	return tok, nil
}

// refresh performs the OAuth refresh_token grant.
func (t *TokenSource) refresh(ctx context.Context) (string, error) {
	if t.cfg.ClientID == "" || t.cfg.ClientSecret == "" || t.cfg.RefreshToken == "" {
		return "", fmt.Errorf("marketplace credentials missing: %w", domain.ErrAuth)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {t.cfg.RefreshToken},
		"scope":         {"https://api.ebay.com/oauth/api_scope"},
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, t.cfg.OAuthURL, strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", domain.ErrAuth)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(t.cfg.ClientID + ":" + t.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh request: %v: %w", err, domain.ErrAuth)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("token refresh status %s: %s: %w",
			resp.Status, strings.TrimSpace(string(body)), domain.ErrAuth)
	}

	var snap tokenSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return "", fmt.Errorf("decode token response: %v: %w", err, domain.ErrAuth)
	}
	if snap.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token: %w", domain.ErrAuth)
	}
	return snap.AccessToken, nil
}

// readSnapshot loads a previously persisted token; any failure means no token.
func (t *TokenSource) readSnapshot() string {
	if t.cfg.TokenFile == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Clean(t.cfg.TokenFile))
	if err != nil {
		return ""
	}
	var snap tokenSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ""
	}
	return snap.AccessToken
}

// writeSnapshot persists the token best-effort so restarts reuse it.
func (t *TokenSource) writeSnapshot(token string) {
	if t.cfg.TokenFile == "" {
		return
	}
	data, err := json.Marshal(tokenSnapshot{AccessToken: token})
	if err != nil {
		return
	}
	if err := os.WriteFile(t.cfg.TokenFile, data, 0o600); err != nil {
		t.logger.Warn("failed to persist marketplace token",
			zap.String("path", t.cfg.TokenFile), zap.Error(err))
	}
}
