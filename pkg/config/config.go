package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// LLM
	AI AIConfig

	// Market data providers
	Market MarketConfig

	// Background services
	Analyst    AnalystConfig
	Consumer   ConsumerConfig
	Supervisor SupervisorConfig

	// API
	API APIConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string // normalized redis:// or rediss:// URL, empty when not configured
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// AIConfig holds LLM provider configuration
type AIConfig struct {
	Provider        string // gemini, claude
	GoogleAPIKey    string
	AnthropicAPIKey string
	Model           string
	Timeout         time.Duration
	MaxAttempts     int
	Temperature     float64
	MaxTokens       int
}

// MarketConfig holds market data provider configuration
type MarketConfig struct {
	Timezone  string
	OpenTime  string // HH:MM
	CloseTime string // HH:MM

	SnapshotTTL   time.Duration
	TechnicalsTTL time.Duration
	NewsTTL       time.Duration
	MacroTTL      time.Duration

	FinvizBaseURL     string
	StockTwitsBaseURL string
	GoogleNewsURL     string
	WikipediaURL      string

	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaDataURL   string
}

// AnalystConfig holds batch scheduler configuration
type AnalystConfig struct {
	BatchDelay    time.Duration
	RunTolerance  time.Duration
	MaxSleep      time.Duration
	MinSleep      time.Duration
	UniverseTTL   time.Duration
	UniverseFile  string
	ScheduleFile  string
	UniverseLimit int
}

// ConsumerConfig holds job consumer configuration
type ConsumerConfig struct {
	QueueKey     string
	BlockTimeout time.Duration
	PollIdle     time.Duration
	PollPace     time.Duration
	PollBatch    int
}

// SupervisorConfig holds process supervisor configuration
type SupervisorConfig struct {
	ShutdownTimeout time.Duration
	EnableAnalyst   bool
	EnableConsumer  bool
	EnableJobs      bool
}

// APIConfig holds HTTP API configuration
type APIConfig struct {
	RateLimit float64 // requests per second per client, 0 disables
	RateBurst int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			URL:      NormalizeRedisURL(getEnv("REDIS_URL", "")),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Prefix:   getEnv("REDIS_PREFIX", "stockread"),
		},

		AI: AIConfig{
			Provider:        strings.ToLower(getEnv("AI_PROVIDER", "gemini")),
			GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			Model:           getEnv("AI_MODEL", ""),
			Timeout:         getEnvAsSeconds("AI_API_TIMEOUT", 60),
			MaxAttempts:     getEnvAsInt("AI_MAX_ATTEMPTS", 2),
			Temperature:     getEnvAsFloat("AI_TEMPERATURE", 0.2),
			MaxTokens:       getEnvAsInt("AI_MAX_TOKENS", 4096),
		},

		Market: MarketConfig{
			Timezone:          getEnv("MARKET_TIMEZONE", "America/New_York"),
			OpenTime:          getEnv("MARKET_OPEN", "09:30"),
			CloseTime:         getEnv("MARKET_CLOSE", "16:00"),
			SnapshotTTL:       getEnvAsDuration("CACHE_TTL_SNAPSHOT", "5m"),
			TechnicalsTTL:     getEnvAsDuration("CACHE_TTL_TECHNICALS", "5m"),
			NewsTTL:           getEnvAsDuration("CACHE_TTL_NEWS", "1h"),
			MacroTTL:          getEnvAsDuration("CACHE_TTL_MACRO", "1m"),
			FinvizBaseURL:     getEnv("FINVIZ_BASE_URL", "https://finviz.com"),
			StockTwitsBaseURL: getEnv("STOCKTWITS_BASE_URL", "https://api.stocktwits.com/api/2"),
			GoogleNewsURL:     getEnv("GOOGLE_NEWS_URL", "https://news.google.com/rss/search"),
			WikipediaURL:      getEnv("SP500_SOURCE_URL", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"),
			AlpacaAPIKey:      getEnv("ALPACA_API_KEY", ""),
			AlpacaAPISecret:   getEnv("ALPACA_API_SECRET", ""),
			AlpacaDataURL:     getEnv("ALPACA_DATA_URL", ""),
		},

		Analyst: AnalystConfig{
			BatchDelay:    getEnvAsDuration("ANALYST_BATCH_DELAY", "20s"),
			RunTolerance:  getEnvAsDuration("ANALYST_RUN_TOLERANCE", "5m"),
			MaxSleep:      getEnvAsDuration("ANALYST_MAX_SLEEP", "5m"),
			MinSleep:      getEnvAsDuration("ANALYST_MIN_SLEEP", "1m"),
			UniverseTTL:   getEnvAsDuration("UNIVERSE_CACHE_TTL", "168h"),
			UniverseFile:  getEnv("UNIVERSE_CACHE_FILE", ".universe_cache.json"),
			ScheduleFile:  getEnv("ANALYST_SCHEDULE_FILE", ""),
			UniverseLimit: getEnvAsInt("UNIVERSE_LIMIT", 500),
		},

		Consumer: ConsumerConfig{
			QueueKey:     getEnv("QUEUE_KEY", "jobs:analysis"),
			BlockTimeout: getEnvAsDuration("QUEUE_BLOCK_TIMEOUT", "5s"),
			PollIdle:     getEnvAsDuration("POLL_IDLE", "5s"),
			PollPace:     getEnvAsDuration("POLL_PACE", "2s"),
			PollBatch:    getEnvAsInt("POLL_BATCH", 20),
		},

		Supervisor: SupervisorConfig{
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "10s"),
			EnableAnalyst:   getEnvAsBool("ENABLE_ANALYST", true),
			EnableConsumer:  getEnvAsBool("ENABLE_CONSUMER", true),
			EnableJobs:      getEnvAsBool("ENABLE_JOBS", true),
		},

		API: APIConfig{
			RateLimit: getEnvAsFloat("API_RATE_LIMIT", 5),
			RateBurst: getEnvAsInt("API_RATE_BURST", 10),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// AIKey returns the API key of the configured provider
func (c *Config) AIKey() string {
	if c.AI.Provider == "claude" {
		return c.AI.AnthropicAPIKey
	}
	return c.AI.GoogleAPIKey
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.AI.Provider != "gemini" && c.AI.Provider != "claude" {
		return fmt.Errorf("AI_PROVIDER must be one of: gemini, claude")
	}

	if c.AI.MaxAttempts < 1 {
		return fmt.Errorf("AI_MAX_ATTEMPTS must be at least 1")
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE is invalid: %w", err)
	}

	return nil
}

var redisURLPattern = regexp.MustCompile(`rediss?://[^\s"']+`)

// NormalizeRedisURL extracts a usable redis URL from raw input.
// "redis-cli --tls -u rediss://..." → "rediss://...", "host:6379" → "redis://host:6379".
// Returns "" when the value cannot be interpreted.
func NormalizeRedisURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if m := redisURLPattern.FindString(raw); m != "" {
		return strings.TrimRight(m, `"'`)
	}

	if strings.HasPrefix(raw, "unix://") {
		return raw
	}

	if !strings.Contains(raw, "://") && (strings.Contains(raw, ":") || strings.HasPrefix(raw, "localhost")) {
		return "redis://" + raw
	}

	return ""
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",
		"../.env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsSeconds accepts either a bare number of seconds ("60") or a duration ("90s")
func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return time.Duration(defaultSeconds) * time.Second
	}

	if n, err := strconv.Atoi(valueStr); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}

	if d, err := time.ParseDuration(valueStr); err == nil && d > 0 {
		return d
	}

	return time.Duration(defaultSeconds) * time.Second
}
