package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Provider    ProviderConfig
	Calendar    CalendarConfig
	Jobs        JobsConfig
	Logging     LoggingConfig
	Environment string
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

// ProviderConfig holds the wire settings for the external quotation provider.
// The timeout default is generous because batch responses spanning long date
// ranges can be large.
type ProviderConfig struct {
	QuantumBaseURL  string
	QuantumUser     string
	QuantumPassword string
	Timeout         time.Duration
	RequestsPerMin  int
}

type CalendarConfig struct {
	// HolidaysFile is a YAML holiday calendar used by CLI commands that run
	// without a database connection. The serve path loads holidays from the
	// holidays table instead.
	HolidaysFile string
}

type JobsConfig struct {
	Enabled bool
	// CollectSchedule is the cron expression for the daily collection job.
	CollectSchedule string
	RetryCollection int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Provider: ProviderConfig{
			QuantumBaseURL:  getEnv("QUANTUM_BASE_URL", ""),
			QuantumUser:     getEnv("QUANTUM_USER", ""),
			QuantumPassword: getEnv("QUANTUM_PASSWORD", ""),
			Timeout:         getEnvDuration("PROVIDER_TIMEOUT", 90*time.Second),
			RequestsPerMin:  getEnvInt("PROVIDER_REQUESTS_PER_MINUTE", 30),
		},
		Calendar: CalendarConfig{
			HolidaysFile: getEnv("HOLIDAYS_FILE", ""),
		},
		Jobs: JobsConfig{
			Enabled:         getEnvBool("JOBS_ENABLED", true),
			CollectSchedule: getEnv("JOB_COLLECT_SCHEDULE", "0 21 * * 1-5"),
			RetryCollection: getEnvInt("JOB_RETRY_COLLECTION", 3),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
