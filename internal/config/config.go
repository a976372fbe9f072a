package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the medfind API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Search      SearchConfig      `yaml:"search"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Cache       CacheConfig       `yaml:"cache"`
	Lexicon     LexiconConfig     `yaml:"lexicon"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Provider   string `yaml:"provider"`
}

// CorpusConfig points at the prebuilt similarity corpus artifact.
type CorpusConfig struct {
	VectorsPath  string `yaml:"vectors_path"`
	MetadataPath string `yaml:"metadata_path"`
}

// SearchConfig holds retrieval tuning knobs.
type SearchConfig struct {
	TopK                int     `yaml:"top_k"`
	ScoreThreshold      float64 `yaml:"score_threshold"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	DefaultLimit        int     `yaml:"default_limit"`
	MaxLimit            int     `yaml:"max_limit"`
}

// MarketplaceConfig holds eBay Browse API settings.
type MarketplaceConfig struct {
	OAuthURL       string   `yaml:"oauth_url"`
	BrowseURL      string   `yaml:"browse_url"`
	ClientID       string   `yaml:"client_id"`
	ClientSecret   string   `yaml:"client_secret"`
	RefreshToken   string   `yaml:"refresh_token"`
	TokenFile      string   `yaml:"token_file"`
	Categories     []string `yaml:"categories"`
	RequestTimeout int      `yaml:"request_timeout_sec"`
}

// CacheConfig holds optional Redis cache settings. Empty addrs disables caching.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LexiconConfig overrides the built-in domain keyword lists.
type LexiconConfig struct {
	Keywords []string `yaml:"keywords"`
	Signals  []string `yaml:"signals"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = 15
	}
	if c.Search.ScoreThreshold <= 0 {
		c.Search.ScoreThreshold = 0.65
	}
	if c.Search.ConfidenceThreshold <= 0 {
		c.Search.ConfidenceThreshold = 0.65
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 50
	}
	if c.Marketplace.OAuthURL == "" {
		c.Marketplace.OAuthURL = "https://api.ebay.com/identity/v1/oauth2/token"
	}
	if c.Marketplace.BrowseURL == "" {
		c.Marketplace.BrowseURL = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	}
	if c.Marketplace.TokenFile == "" {
		c.Marketplace.TokenFile = "ebay_token.json"
	}
	if len(c.Marketplace.Categories) == 0 {
		// eBay category ids for the medical supply verticals.
		c.Marketplace.Categories = []string{"11815", "177646", "40943", "18412", "11818", "10968"}
	}
	if c.Marketplace.RequestTimeout <= 0 {
		c.Marketplace.RequestTimeout = 10
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Corpus.VectorsPath == "" {
		c.Corpus.VectorsPath = filepath.Join("embeddings", "vectors.f32")
	}
	if c.Corpus.MetadataPath == "" {
		c.Corpus.MetadataPath = filepath.Join("embeddings", "metadata.json")
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Search.ScoreThreshold > 1 {
		return fmt.Errorf("search.score_threshold must be <= 1, got %g", c.Search.ScoreThreshold)
	}
	if c.Search.ConfidenceThreshold > 1 {
		return fmt.Errorf("search.confidence_threshold must be <= 1, got %g", c.Search.ConfidenceThreshold)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
