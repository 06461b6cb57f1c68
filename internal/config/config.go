package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxSizeMB        int

	OpenAIAPIKey      string
	ScoringModel      string
	ScoringTimeout    time.Duration
	VisionModel       string
	ExtractionTimeout time.Duration
	// ExtractionProviders orders the OCR fallback chain. Recognised entries:
	// openai-vision, remote-ocr.
	ExtractionProviders   []string
	RemoteOCRURL          string
	RemoteOCRToken        string
	ExtractionConcurrency int

	MaxAttempts             int
	AllocationRetries       int
	PublishThreshold        float64
	MaxListItems            int
	ProgressCacheTTL        time.Duration
	SubmitRateLimit         int
	SubmitRateWindowSeconds int
	EventChannelBase        string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("VIDYA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "VIDYA API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "vidya/answers")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("scoring.model", "gpt-4o-mini")
	v.SetDefault("scoring.timeout", "45s")
	v.SetDefault("vision.model", "gpt-4o-mini")
	v.SetDefault("extraction.timeout", "30s")
	v.SetDefault("extraction.providers", "openai-vision,remote-ocr")
	v.SetDefault("extraction.concurrency", 4)
	v.SetDefault("attempts.max", 5)
	v.SetDefault("attempts.retries", 3)
	v.SetDefault("publish.threshold", 40)
	v.SetDefault("evaluation.max_list_items", 10)
	v.SetDefault("progress.cache_ttl", "5m")
	v.SetDefault("submit.rate_limit", 10)
	v.SetDefault("submit.rate_window_seconds", 60)
	v.SetDefault("events.channel_base", "vidya")

	scoringTimeout, err := time.ParseDuration(v.GetString("scoring.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid scoring timeout: %w", err)
	}
	extractionTimeout, err := time.ParseDuration(v.GetString("extraction.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid extraction timeout: %w", err)
	}
	cacheTTL, err := time.ParseDuration(v.GetString("progress.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress cache ttl: %w", err)
	}

	providers := []string{}
	for _, provider := range strings.Split(v.GetString("extraction.providers"), ",") {
		if trimmed := strings.ToLower(strings.TrimSpace(provider)); trimmed != "" {
			providers = append(providers, trimmed)
		}
	}

	cfg := Config{
		AppName:     v.GetString("app.name"),
		AppEnv:      v.GetString("app.env"),
		AppPort:     v.GetString("app.port"),
		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		NATSURL:     v.GetString("nats.url"),
		JWTSecret:   v.GetString("jwt.secret"),

		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),

		OpenAIAPIKey:          v.GetString("openai_api_key"),
		ScoringModel:          v.GetString("scoring.model"),
		ScoringTimeout:        scoringTimeout,
		VisionModel:           v.GetString("vision.model"),
		ExtractionTimeout:     extractionTimeout,
		ExtractionProviders:   providers,
		RemoteOCRURL:          v.GetString("remote_ocr.url"),
		RemoteOCRToken:        v.GetString("remote_ocr.token"),
		ExtractionConcurrency: v.GetInt("extraction.concurrency"),

		MaxAttempts:             v.GetInt("attempts.max"),
		AllocationRetries:       v.GetInt("attempts.retries"),
		PublishThreshold:        v.GetFloat64("publish.threshold"),
		MaxListItems:            v.GetInt("evaluation.max_list_items"),
		ProgressCacheTTL:        cacheTTL,
		SubmitRateLimit:         v.GetInt("submit.rate_limit"),
		SubmitRateWindowSeconds: v.GetInt("submit.rate_window_seconds"),
		EventChannelBase:        v.GetString("events.channel_base"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.AllocationRetries <= 0 {
		cfg.AllocationRetries = 3
	}

	return cfg, nil
}
