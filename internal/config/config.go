package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Validation  ValidationConfig
	Anomaly     AnomalyConfig
	Billing     BillingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL              string
	IntakeExchange   string
	IntakeQueue      string
	IntakeRoutingKey string
	EventsExchange   string
	DLQQueue         string
	PrefetchCount    int
}

// ValidationConfig holds validation settings
type ValidationConfig struct {
	TimestampToleranceMinutes int
}

// AnomalyConfig holds anomaly detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64
	MinDataPointsForDetection int
	HistorySize               int
}

// BillingConfig holds allocation and display settings
type BillingConfig struct {
	Currency       string
	Locale         string
	HeatingPattern string
	VacantSentinel string
	// AuthoritativeShares switches per_person and per_area meters to the
	// weighted allocator whenever building totals are known.
	AuthoritativeShares bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "rental-billing-worker"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8081),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			IntakeExchange:   getEnv("RABBITMQ_INTAKE_EXCHANGE", "rental-billing.intake.exchange"),
			IntakeQueue:      getEnv("RABBITMQ_INTAKE_QUEUE", "rental-billing.intake.queue"),
			IntakeRoutingKey: getEnv("RABBITMQ_INTAKE_ROUTING_KEY", "#"),
			EventsExchange:   getEnv("RABBITMQ_EVENTS_EXCHANGE", "rental-billing.events.exchange"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "rental-billing.intake.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Validation: ValidationConfig{
			TimestampToleranceMinutes: getEnvAsInt("VALIDATION_TIMESTAMP_TOLERANCE_MINUTES", 10080),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            getEnvAsFloat("ANOMALY_SPIKE_THRESHOLD", 3.0),
			MinDataPointsForDetection: getEnvAsInt("ANOMALY_MIN_DATA_POINTS", 3),
			HistorySize:               getEnvAsInt("ANOMALY_HISTORY_SIZE", 6),
		},
		Billing: BillingConfig{
			Currency:            getEnv("BILLING_CURRENCY", "EUR"),
			Locale:              getEnv("BILLING_LOCALE", "fi"),
			HeatingPattern:      getEnv("BILLING_HEATING_PATTERN", ""),
			VacantSentinel:      getEnv("BILLING_VACANT_SENTINEL", "vacant"),
			AuthoritativeShares: getEnvAsBool("BILLING_AUTHORITATIVE_SHARES", false),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}
	if len(cfg.Billing.Currency) != 3 {
		return nil, fmt.Errorf("BILLING_CURRENCY must be an ISO 4217 code, got %q", cfg.Billing.Currency)
	}

	return cfg, nil
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
