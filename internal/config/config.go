package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Remote feeds.
	TrackingFeedURL string
	WeatherFeedURL  string
	FeedTimeout     time.Duration
	FeedCacheTTL    time.Duration
	RefreshInterval time.Duration

	// Event definition.
	EventTimezone  string
	EventStartDate string
	DNFThreshold   time.Duration
	RouteConfig    string

	// Arrival event publishing.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaArrivalsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		TrackingFeedURL: os.Getenv("TRACKING_FEED_URL"),
		WeatherFeedURL:  os.Getenv("WEATHER_FEED_URL"),

		EventTimezone:  sharedcfg.EnvOrDefault("EVENT_TIMEZONE", "Europe/London"),
		EventStartDate: sharedcfg.EnvOrDefault("EVENT_START_DATE", "2025-08-03"),
		RouteConfig:    os.Getenv("ROUTE_CONFIG"),

		KafkaArrivalsTopic: sharedcfg.EnvOrDefault("KAFKA_ARRIVALS_TOPIC", "rider-arrivals"),
	}

	for _, d := range []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"FEED_TIMEOUT", "10s", &cfg.FeedTimeout},
		{"FEED_CACHE_TTL", "2m", &cfg.FeedCacheTTL},
		{"REFRESH_INTERVAL", "1m", &cfg.RefreshInterval},
		{"DNF_THRESHOLD", "16h", &cfg.DNFThreshold},
	} {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}
	cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "true"
	}

	if cfg.TrackingFeedURL == "" {
		return nil, errors.New("TRACKING_FEED_URL is required")
	}
	if _, err := time.Parse(time.DateOnly, cfg.EventStartDate); err != nil {
		return nil, fmt.Errorf("invalid EVENT_START_DATE: %w", err)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaArrivalsTopic == "" {
		return nil, errors.New("KAFKA_ARRIVALS_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
