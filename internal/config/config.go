package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Feed is a configured content source.
type Feed struct {
	Key  string `yaml:"key" json:"key" validate:"required,printascii,excludesall=/?#"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url" validate:"required,url"`
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required,numeric"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Feeds
	Feeds           []Feed        `json:"feeds" validate:"dive"`
	FeedsFile       string        `json:"feeds_file"`
	DefaultFeed     string        `json:"default_feed"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	RetentionWindow time.Duration `json:"retention_window" validate:"gt=0"`

	// Cache configuration
	CacheBackend string        `json:"cache_backend" validate:"oneof=redis s3 file memory"`
	RedisURL     string        `json:"redis_url"`
	RedisPrefix  string        `json:"redis_prefix"`
	CacheTTL     time.Duration `json:"cache_ttl"`
	CachePath    string        `json:"cache_path"`

	// CloudFlare R2 Configuration
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`
	R2AccountID string `json:"r2_account_id"`

	// AI Configuration
	AIApiKey        string        `json:"ai_api_key"`
	AIModel         string        `json:"ai_model"`
	AIBaseURL       string        `json:"ai_base_url" validate:"omitempty,url"`
	AITimeout       time.Duration `json:"ai_timeout" validate:"gt=0"`
	AIRPM           int           `json:"ai_rpm" validate:"gte=0"`
	AIBurst         int           `json:"ai_burst" validate:"gte=0"`
	AIMaxInputChars int           `json:"ai_max_input_chars" validate:"gt=0"`

	// Enrichment
	EnrichBatchSize  int           `json:"enrich_batch_size" validate:"gte=1"`
	EnrichBatchDelay time.Duration `json:"enrich_batch_delay" validate:"gt=0"`
	ContentTimeout   time.Duration `json:"content_timeout" validate:"gt=0"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Security
	AdminAPIKey string `json:"admin_api_key"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Feeds
		FeedsFile:       getEnv("FEEDS_FILE", ""),
		DefaultFeed:     getEnv("DEFAULT_FEED", ""),
		RefreshInterval: getEnvAsDuration("REFRESH_INTERVAL", 15*time.Minute),
		RetentionWindow: getEnvAsDuration("RETENTION_WINDOW", 24*time.Hour),

		// Cache configuration
		CacheBackend: getEnv("CACHE_BACKEND", "redis"),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:  getEnv("REDIS_PREFIX", "newsenrich:"),
		CacheTTL:     getEnvAsDuration("CACHE_TTL", 72*time.Hour),
		CachePath:    getEnv("CACHE_PATH", "./data/cache"),

		// AI Configuration
		AIApiKey:        getEnv("AI_API_KEY", ""),
		AIModel:         getEnv("AI_MODEL", "gemini-pro"),
		AIBaseURL:       getEnv("AI_BASE_URL", ""),
		AITimeout:       getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
		AIRPM:           getEnvAsInt("AI_RPM", 30),
		AIBurst:         getEnvAsInt("AI_BURST", 2),
		AIMaxInputChars: getEnvAsInt("AI_MAX_INPUT_CHARS", 6000),

		// Enrichment
		EnrichBatchSize:  getEnvAsInt("ENRICH_BATCH_SIZE", 2),
		EnrichBatchDelay: getEnvAsDuration("ENRICH_BATCH_DELAY", 500*time.Millisecond),
		ContentTimeout:   getEnvAsDuration("CONTENT_TIMEOUT", 15*time.Second),

		// CloudFlare R2 Configuration
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", "newsenrich"),
		R2AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	feeds, err := loadFeeds(cfg.FeedsFile, getEnv("FEEDS", ""))
	if err != nil {
		log.Fatalf("Invalid feed configuration: %v", err)
	}
	cfg.Feeds = feeds

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Feeds))
	for _, f := range c.Feeds {
		if seen[f.Key] {
			return fmt.Errorf("duplicate feed key %q", f.Key)
		}
		seen[f.Key] = true
	}

	if c.DefaultFeed != "" && !seen[c.DefaultFeed] {
		return fmt.Errorf("default feed %q is not configured", c.DefaultFeed)
	}

	switch c.CacheBackend {
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
	case "s3":
		if c.R2Bucket == "" || c.R2AccessKey == "" || c.R2SecretKey == "" {
			return fmt.Errorf("R2 bucket and credentials are required for the s3 cache backend")
		}
		if c.R2Endpoint == "" && c.R2AccountID == "" {
			return fmt.Errorf("R2_ENDPOINT or CLOUDFLARE_ACCOUNT_ID is required for the s3 cache backend")
		}
	case "file":
		if c.CachePath == "" {
			return fmt.Errorf("CACHE_PATH is required for the file cache backend")
		}
	}

	return nil
}

// Feed looks up a configured feed by key.
func (c *Config) Feed(key string) (Feed, bool) {
	for _, f := range c.Feeds {
		if f.Key == key {
			return f, true
		}
	}
	return Feed{}, false
}

// S3Endpoint returns the R2 endpoint, derived from the account ID when no
// explicit endpoint is set.
func (c *Config) S3Endpoint() string {
	if c.R2Endpoint != "" {
		return c.R2Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

type feedsFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// loadFeeds reads feeds from a YAML file and from a "key=url,key=url" list.
// Entries from the list are appended after the file's.
func loadFeeds(path, inline string) ([]Feed, error) {
	var feeds []Feed

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read feeds file: %w", err)
		}
		var ff feedsFile
		if err := yaml.Unmarshal(data, &ff); err != nil {
			return nil, fmt.Errorf("parse feeds file: %w", err)
		}
		feeds = append(feeds, ff.Feeds...)
	}

	for _, part := range strings.Split(inline, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, url, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid feed %q, expected key=url", part)
		}
		feeds = append(feeds, Feed{
			Key:  strings.TrimSpace(key),
			Name: strings.TrimSpace(key),
			URL:  strings.TrimSpace(url),
		})
	}

	for i := range feeds {
		if feeds[i].Name == "" {
			feeds[i].Name = feeds[i].Key
		}
	}

	return feeds, nil
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
