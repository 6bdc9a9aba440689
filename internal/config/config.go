package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// History backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config holds all settings, populated from environment variables.
type Config struct {
	CatalogPath    string
	HistoryBackend string
	HistoryPath    string
	SQLitePath     string
	LookbackDays   int

	// Classifier artifact or remote inference endpoint (MODEL_URL wins when set).
	ModelPath    string
	ModelURL     string
	ModelTimeout time.Duration

	// Earth Engine data source.
	EarthEngineProject string
	EarthEngineBaseURL string
	EarthEngineDataset string
	EarthEngineBand    string
	EarthEngineScale   float64
	ServiceAccount     string
	KeyJSON            string

	FetchTimeout     time.Duration
	RunTimeout       time.Duration
	FetchConcurrency int
	CacheSize        int

	// Optional assessment fan-out.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	PushgatewayURL  string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	modelTimeout, err := parseDuration("MODEL_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	runTimeout, err := parseDuration("RUN_TIMEOUT", "30m")
	if err != nil {
		return nil, err
	}

	lookback, err := parsePositiveInt("LOOKBACK_DAYS", 7, 366)
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("FETCH_CONCURRENCY", 1, 32)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CACHE_SIZE", 1000, 1_000_000)
	if err != nil {
		return nil, err
	}

	scale, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("EE_SCALE", "5000"), 64)
	if err != nil || scale <= 0 {
		return nil, errors.New("invalid EE_SCALE")
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		CatalogPath:    sharedcfg.EnvOrDefault("CATALOG_PATH", "ASDF_Wells_Cleaned.csv"),
		HistoryBackend: strings.ToLower(sharedcfg.EnvOrDefault("HISTORY_BACKEND", BackendCSV)),
		HistoryPath:    sharedcfg.EnvOrDefault("HISTORY_PATH", "risk_history.csv"),
		SQLitePath:     sharedcfg.EnvOrDefault("SQLITE_PATH", "risk_history.db"),
		LookbackDays:   lookback,

		ModelPath:    sharedcfg.EnvOrDefault("MODEL_PATH", "model.json"),
		ModelURL:     os.Getenv("MODEL_URL"),
		ModelTimeout: modelTimeout,

		EarthEngineProject: sharedcfg.EnvOrDefault("EE_PROJECT", "rainfall-functionality-predict"),
		EarthEngineBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("EE_BASE_URL", "https://earthengine.googleapis.com"), "/"),
		EarthEngineDataset: sharedcfg.EnvOrDefault("EE_DATASET", "UCSB-CHG/CHIRPS/DAILY"),
		EarthEngineBand:    sharedcfg.EnvOrDefault("EE_BAND", "precipitation"),
		EarthEngineScale:   scale,
		ServiceAccount:     os.Getenv("SERVICE_ACCOUNT"),
		KeyJSON:            os.Getenv("KEY_JSON"),

		FetchTimeout:     fetchTimeout,
		RunTimeout:       runTimeout,
		FetchConcurrency: concurrency,
		CacheSize:        cacheSize,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "well-risk-assessments"),
		KafkaEnabled: kafkaEnabled,

		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.HistoryBackend != BackendCSV && cfg.HistoryBackend != BackendSQLite {
		return nil, fmt.Errorf("invalid HISTORY_BACKEND %q: want csv or sqlite", cfg.HistoryBackend)
	}
	if cfg.EarthEngineProject == "" {
		return nil, errors.New("EE_PROJECT is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when Kafka is enabled")
	}
	if cfg.FetchTimeout > cfg.RunTimeout {
		return nil, errors.New("FETCH_TIMEOUT must not exceed RUN_TIMEOUT")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def, upper int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > upper {
		return 0, fmt.Errorf("invalid %s: must be between 1 and %d", key, upper)
	}
	return n, nil
}
