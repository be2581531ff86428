package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const maxWindowDays = 365

// Config holds all service settings, populated from environment variables.
type Config struct {
	SensorAPIURL string
	SensorID     string
	FetchTimeout time.Duration
	PollInterval time.Duration

	WindowMaxAgeDays int
	WindowReference  domain.WindowReference

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Reading sink.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	// Snapshot store. Empty RedisAddr keeps snapshots in memory.
	RedisAddr   string
	RedisDB     int
	SnapshotTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "1m")
	if err != nil {
		return nil, err
	}
	snapshotTTL, err := parsePositiveDuration("SNAPSHOT_TTL", "24h")
	if err != nil {
		return nil, err
	}

	windowDays, err := strconv.Atoi(sharedcfg.EnvOrDefault("WINDOW_MAX_AGE_DAYS", "1"))
	if err != nil || windowDays < 1 || windowDays > maxWindowDays {
		return nil, fmt.Errorf("invalid WINDOW_MAX_AGE_DAYS: must be between 1 and %d", maxWindowDays)
	}

	windowRef, err := domain.ParseWindowReference(sharedcfg.EnvOrDefault("WINDOW_REFERENCE", string(domain.ReferenceLatest)))
	if err != nil {
		return nil, fmt.Errorf("invalid WINDOW_REFERENCE: %w", err)
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	cfg := &Config{
		SensorAPIURL:     sharedcfg.EnvOrDefault("SENSOR_API_URL", "http://localhost:3000"),
		SensorID:         sharedcfg.EnvOrDefault("SENSOR_ID", "d444f210-9025-11eb-b5ca-d76ebde59f16"),
		FetchTimeout:     fetchTimeout,
		PollInterval:     pollInterval,
		WindowMaxAgeDays: windowDays,
		WindowReference:  windowRef,
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "compost-sensor-readings"),

		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     redisDB,
		SnapshotTTL: snapshotTTL,
	}

	if err := validateSensorURL(cfg.SensorAPIURL); err != nil {
		return nil, err
	}
	if cfg.SensorID == "" {
		return nil, errors.New("SENSOR_ID is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is empty")
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

func validateSensorURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("SENSOR_API_URL must be an absolute http or https URL")
	}
	return nil
}
