// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, database and index paths, Slack credentials, Gemini model options,
// cache sizing, and rate limiting.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SlackConfig holds the credentials and identity for the Slack workspace
// the bot is installed into.
type SlackConfig struct {
	BotToken      string // SLACK_BOT_TOKEN (xoxb-…)
	SigningSecret string // SLACK_SIGNING_SECRET, used to verify inbound events
	// MaxSkew rejects event deliveries whose timestamp header is older than
	// this, defeating signature replay.
	MaxSkew time.Duration
}

// GeminiConfig holds model selection and client behavior for the Google
// GenAI provider (generation + embeddings).
type GeminiConfig struct {
	APIKey      string        // GEMINI_API_KEY
	Model       string        // GEMINI_MODEL (generation)
	EmbedModel  string        // GEMINI_EMBED_MODEL
	CallTimeout time.Duration // hard deadline per provider call
	RPS         float64       // outbound pacing (tokens per second)
	Burst       int           // outbound pacing burst
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Persistence
	DBPath        string // SQLite path for flagged questions + exchanges
	VerifiedIndex string // snapshot path for the human-verified vector index
	GeneralIndex  string // snapshot path for the general vector index

	// Retrieval / feedback policy
	SimilarityThreshold float64 // flagged-question cosine cutoff [0,1]
	SimilarityLimit     int     // max flagged matches returned
	HistoryWindow       int     // exchanges of thread history in context
	RetrievalK          int     // documents pulled per index

	// Dedup
	DedupTTL      time.Duration // how long a message id stays "seen"
	DedupCapacity int

	// Caches
	ResponseCacheSize  int
	ResponseCacheTTL   time.Duration
	EmbeddingCacheSize int

	// Rate limiting (fixed window per client)
	RateWindow time.Duration
	RateLimit  int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Collaborators
	Slack  SlackConfig
	Gemini GeminiConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Persistence
		DBPath:        getenv("DB_PATH", "bot.db"),
		VerifiedIndex: getenv("VERIFIED_INDEX_PATH", "data/index_verified.gob"),
		GeneralIndex:  getenv("GENERAL_INDEX_PATH", "data/index_general.gob"),

		// Retrieval / feedback policy
		SimilarityThreshold: getfloat("SIMILARITY_THRESHOLD", 0.8),
		SimilarityLimit:     getint("SIMILARITY_LIMIT", 5),
		HistoryWindow:       getint("HISTORY_WINDOW", 5),
		RetrievalK:          getint("RETRIEVAL_K", 2),

		// Dedup
		DedupTTL:      getdur("DEDUP_TTL", 24*time.Hour),
		DedupCapacity: getint("DEDUP_CAPACITY", 10000),

		// Caches
		ResponseCacheSize:  getint("RESPONSE_CACHE_SIZE", 1000),
		ResponseCacheTTL:   getdur("RESPONSE_CACHE_TTL", time.Hour),
		EmbeddingCacheSize: getint("EMBEDDING_CACHE_SIZE", 10000),

		// Rate limiting
		RateWindow: getdur("RATE_WINDOW", 60*time.Second),
		RateLimit:  getint("RATE_LIMIT", 100),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Collaborators
		Slack: SlackConfig{
			BotToken:      getenv("SLACK_BOT_TOKEN", ""),
			SigningSecret: getenv("SLACK_SIGNING_SECRET", ""),
			MaxSkew:       getdur("SLACK_MAX_SKEW", 5*time.Minute),
		},
		Gemini: GeminiConfig{
			APIKey:      getenv("GEMINI_API_KEY", ""),
			Model:       getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbedModel:  getenv("GEMINI_EMBED_MODEL", "gemini-embedding-001"),
			CallTimeout: getdur("GEMINI_CALL_TIMEOUT", 30*time.Second),
			RPS:         getfloat("GEMINI_RPS", 5.0),
			Burst:       getint("GEMINI_BURST", 5),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-knowledge-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.VerifiedIndex) == "" || strings.TrimSpace(cfg.GeneralIndex) == "" {
		return cfg, errors.New("index snapshot paths must not be empty")
	}
	if cfg.VerifiedIndex == cfg.GeneralIndex {
		return cfg, errors.New("verified and general index paths must differ")
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return cfg, errors.New("SIMILARITY_THRESHOLD must be between 0 and 1")
	}
	if cfg.SimilarityLimit < 1 {
		return cfg, errors.New("SIMILARITY_LIMIT must be >= 1")
	}
	if cfg.HistoryWindow < 0 {
		return cfg, errors.New("HISTORY_WINDOW must be >= 0")
	}
	if cfg.RetrievalK < 1 {
		return cfg, errors.New("RETRIEVAL_K must be >= 1")
	}
	if cfg.DedupTTL <= 0 || cfg.DedupCapacity < 1 {
		return cfg, errors.New("dedup TTL must be > 0 and capacity >= 1")
	}
	if cfg.ResponseCacheSize < 1 || cfg.ResponseCacheTTL <= 0 || cfg.EmbeddingCacheSize < 1 {
		return cfg, errors.New("cache sizes must be >= 1 and response TTL > 0")
	}
	if cfg.RateWindow <= 0 {
		return cfg, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.RateLimit < 1 {
		return cfg, errors.New("RATE_LIMIT must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Slack.MaxSkew <= 0 {
		return cfg, errors.New("SLACK_MAX_SKEW must be > 0")
	}
	if cfg.Gemini.CallTimeout <= 0 {
		return cfg, errors.New("GEMINI_CALL_TIMEOUT must be > 0")
	}
	if cfg.Gemini.RPS < 0 {
		return cfg, errors.New("GEMINI_RPS must be >= 0")
	}
	if cfg.Gemini.Burst < 1 {
		return cfg, errors.New("GEMINI_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
