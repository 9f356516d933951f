// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Provider identifies which product source is active for search.
type Provider string

const (
	// ProviderAmazon is the signed marketplace API. It enforces a strict
	// requests-per-second ceiling, so searches run sequentially.
	ProviderAmazon Provider = "amazon"

	// ProviderWebSearch is the web-search-based scraper. No meaningful rate
	// limit, so searches run in parallel.
	ProviderWebSearch Provider = "websearch"
)

// SearchMode controls how many queries per concept are issued against the
// rate-limited provider.
type SearchMode string

const (
	SearchModeLite SearchMode = "lite"
	SearchModeFull SearchMode = "full"
)

// Config holds all configuration for the application. It is constructed once
// at startup and passed explicitly into every component constructor.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// LLM settings
	OpenAIAPIKey    string
	AnthropicAPIKey string
	ConceptModel    string
	EmbeddingModel  string

	// Amazon product API settings
	AmazonAccessKey     string
	AmazonSecretKey     string
	AmazonPartnerTag    string
	AmazonHost          string
	AmazonRegion        string
	AmazonMultiCategory bool

	// Web search settings
	SerpAPIKey      string
	WebSearchDomain string

	// Pipeline settings
	ActiveProvider    Provider
	SearchMode        SearchMode
	EnrichmentEnabled bool
	ConceptCount      int
	ProductsPerBundle int
	ParallelCeiling   int
	SequentialDelay   time.Duration
	RetryMaxAttempts  int
	GenerationTimeout time.Duration

	// Persistence
	DatabaseURL string

	// Analytics
	NATSURL   string
	NATSToken string
	RedisAddr string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// LLM
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		ConceptModel:    getEnv("CONCEPT_MODEL", ""),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		// Amazon
		AmazonAccessKey:     getEnv("AMAZON_ACCESS_KEY", ""),
		AmazonSecretKey:     getEnv("AMAZON_SECRET_KEY", ""),
		AmazonPartnerTag:    getEnv("AMAZON_PARTNER_TAG", ""),
		AmazonHost:          getEnv("AMAZON_HOST", "webservices.amazon.com"),
		AmazonRegion:        getEnv("AMAZON_REGION", "us-east-1"),
		AmazonMultiCategory: getBoolEnv("AMAZON_MULTI_CATEGORY", false),

		// Web search
		SerpAPIKey:      getEnv("SERPAPI_KEY", ""),
		WebSearchDomain: getEnv("WEB_SEARCH_DOMAIN", "etsy.com"),

		// Pipeline
		ActiveProvider:    Provider(getEnv("ACTIVE_PROVIDER", string(ProviderWebSearch))),
		SearchMode:        SearchMode(getEnv("SEARCH_MODE", string(SearchModeLite))),
		EnrichmentEnabled: getBoolEnv("ENRICHMENT_ENABLED", false),
		ConceptCount:      getIntEnv("CONCEPT_COUNT", 4),
		ProductsPerBundle: getIntEnv("PRODUCTS_PER_BUNDLE", 3),
		ParallelCeiling:   getIntEnv("PARALLEL_CEILING", 8),
		SequentialDelay:   getDurationEnv("SEQUENTIAL_DELAY", 1500*time.Millisecond),
		RetryMaxAttempts:  getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		GenerationTimeout: getDurationEnv("GENERATION_TIMEOUT", 60*time.Second),

		// Persistence
		DatabaseURL: getEnv("DATABASE_URL", ""),

		// Analytics
		NATSURL:   getEnv("NATS_URL", ""),
		NATSToken: getEnv("NATS_TOKEN", ""),
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
