package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	MetricsAddr     string
	ShutdownTimeout time.Duration

	// ENTSO-E Transparency Platform access.
	EntsoeToken   string
	EntsoeBaseURL string

	// Open-Meteo endpoints (forecast and historical archive).
	OpenMeteoBaseURL    string
	OpenMeteoArchiveURL string

	ExtractTimeout     time.Duration
	ExtractRetries     int
	ExtractConcurrency int

	// Feature store DSN. Required by the feature, train and infer
	// commands; the offline tools run without it.
	StoreDSN string

	// Local artifact locations.
	DataDir         string
	PredictionsPath string
	MAEPath         string
	SnapshotDir     string
	ModelsDir       string
	ModelName       string

	BackfillStart time.Time
	BackfillEnd   time.Time

	// Optional prediction publishing.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is folded in first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	extractTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("EXTRACT_TIMEOUT", "30s"))
	if err != nil || extractTimeout <= 0 {
		return nil, errors.New("invalid EXTRACT_TIMEOUT")
	}

	backfillStart, err := parseDate("BACKFILL_START", "2019-01-01")
	if err != nil {
		return nil, err
	}
	backfillEnd, err := parseDate("BACKFILL_END", "2025-01-05")
	if err != nil {
		return nil, err
	}
	if !backfillEnd.After(backfillStart) {
		return nil, errors.New("BACKFILL_END must be after BACKFILL_START")
	}

	kafkaTopic := sharedcfg.EnvOrDefault("KAFKA_PREDICTIONS_TOPIC", "")
	kafkaEnabled := kafkaTopic != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		MetricsAddr:     sharedcfg.EnvOrDefault("METRICS_ADDR", ""),
		ShutdownTimeout: shutdownTimeout,

		EntsoeToken:   os.Getenv("ENTSOE_API_TOKEN"),
		EntsoeBaseURL: sharedcfg.EnvOrDefault("ENTSOE_BASE_URL", "https://web-api.tp.entsoe.eu/api"),

		OpenMeteoBaseURL:    sharedcfg.EnvOrDefault("OPEN_METEO_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		OpenMeteoArchiveURL: sharedcfg.EnvOrDefault("OPEN_METEO_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive"),

		ExtractTimeout:     extractTimeout,
		ExtractRetries:     parsePositiveInt("EXTRACT_RETRIES", 3),
		ExtractConcurrency: parsePositiveInt("EXTRACT_CONCURRENCY", 4),

		StoreDSN: os.Getenv("STORE_DSN"),

		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		PredictionsPath: sharedcfg.EnvOrDefault("PREDICTIONS_PATH", "data/predictions.csv"),
		MAEPath:         sharedcfg.EnvOrDefault("MAE_PATH", "data/mae_metrics.csv"),
		SnapshotDir:     sharedcfg.EnvOrDefault("SNAPSHOT_DIR", ""),
		ModelsDir:       sharedcfg.EnvOrDefault("MODELS_DIR", "models"),
		ModelName:       sharedcfg.EnvOrDefault("MODEL_NAME", "model_total_production"),

		BackfillStart: backfillStart,
		BackfillEnd:   backfillEnd,

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   kafkaTopic,
		KafkaEnabled: kafkaEnabled,
	}

	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_PREDICTIONS_TOPIC is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func parseDate(key, def string) (time.Time, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, errors.New("invalid " + key)
	}
	return t, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
