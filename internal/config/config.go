package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full service configuration
type Config struct {
	Port     int
	LogLevel string
	Env      string
	DB       DBConfig
	Kafka    KafkaConfig
	Cin7     Cin7Config
	Printavo PrintavoConfig
	Sync     SyncConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// KafkaConfig holds the Kafka configuration. Empty Brokers disables
// change-event publishing entirely.
type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
}

// Cin7Config holds the credentials and endpoint for the inventory system.
// Credentials are checked at call time, not load time: a missing pair
// disables only that adapter for the cycle.
type Cin7Config struct {
	BaseURL        string
	AccountID      string
	ApplicationKey string
}

// PrintavoConfig holds the credentials and endpoint for the quoting system
type PrintavoConfig struct {
	BaseURL string
	Email   string
	Token   string
}

// SyncConfig holds the knobs for the sync cycle and the enrichment worker
type SyncConfig struct {
	Interval            time.Duration // how often the reconciliation cycle runs
	EnrichmentInterval  time.Duration // how often the detail worker wakes up
	EnrichmentBatchSize int           // max orders enriched per invocation
	EnrichmentSpacing   time.Duration // minimum gap between detail calls
	VIPCustomerMatch    string        // customer substring that triggers VIP grouping
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, strconv.Itoa(defaultValue))
	v, err := strconv.Atoi(raw)

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, defaultValue.String())
	v, err := time.ParseDuration(raw)

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

// Load reads the configuration from environment variables and returns a Config struct.
func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}

	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	syncInterval, err := getEnvDuration("SYNC_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	enrichInterval, err := getEnvDuration("ENRICHMENT_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	enrichBatch, err := getEnvInt("ENRICHMENT_BATCH_SIZE", 60)
	if err != nil {
		return nil, err
	}

	enrichSpacing, err := getEnvDuration("ENRICHMENT_SPACING", time.Second)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			brokers = append(brokers, strings.TrimSpace(b))
		}
	}

	return &Config{
		Port:     port,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Env:      getEnv("APP_ENV", "development"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "ordersync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:     brokers,
			OrdersTopic: getEnv("KAFKA_ORDERS_TOPIC", "order-events"),
		},
		Cin7: Cin7Config{
			BaseURL:        getEnv("CIN7_BASE_URL", "https://inventory.dearsystems.com/ExternalApi/v2"),
			AccountID:      getEnv("CIN7_ACCOUNT_ID", ""),
			ApplicationKey: getEnv("CIN7_APPLICATION_KEY", ""),
		},
		Printavo: PrintavoConfig{
			BaseURL: getEnv("PRINTAVO_BASE_URL", "https://www.printavo.com/api/v2"),
			Email:   getEnv("PRINTAVO_EMAIL", ""),
			Token:   getEnv("PRINTAVO_TOKEN", ""),
		},
		Sync: SyncConfig{
			Interval:            syncInterval,
			EnrichmentInterval:  enrichInterval,
			EnrichmentBatchSize: enrichBatch,
			EnrichmentSpacing:   enrichSpacing,
			VIPCustomerMatch:    getEnv("VIP_CUSTOMER_MATCH", "Murdoch"),
		},
	}, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
