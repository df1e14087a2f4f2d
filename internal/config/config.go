package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Workflow  WorkflowConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// DirectoryTTL bounds how long cached org-directory reads are served.
	DirectoryTTL time.Duration
	Enabled      bool
}

type WorkflowConfig struct {
	// OrgCode is the leading segment of generated reference numbers.
	OrgCode string
	// ConflictRetries bounds internal retries on step-number collisions
	// before a conflict is surfaced to the caller.
	ConflictRetries int
	RetryBackoff    time.Duration
	// ManualRouteMinJustification is the minimum justification length for
	// hierarchy-bypass routing.
	ManualRouteMinJustification int
	// ManagementRank is the minimum grade rank allowed to add distribution
	// entries.
	ManagementRank int
}

type TelemetryConfig struct {
	Enabled        bool
	ExporterURL    string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
	Insecure       bool
}

func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "3001"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			Environment:  getEnv("SERVER_ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "password"),
			Name:         getEnv("DB_NAME", "corrflow"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			DirectoryTTL: getEnvDuration("REDIS_DIRECTORY_TTL", 5*time.Minute),
			Enabled:      getEnvBool("REDIS_ENABLED", false),
		},
		Workflow: WorkflowConfig{
			OrgCode:                     getEnv("WORKFLOW_ORG_CODE", "NPA"),
			ConflictRetries:             getEnvInt("WORKFLOW_CONFLICT_RETRIES", 3),
			RetryBackoff:                getEnvDuration("WORKFLOW_RETRY_BACKOFF", 50*time.Millisecond),
			ManualRouteMinJustification: getEnvInt("WORKFLOW_MANUAL_ROUTE_MIN_JUSTIFICATION", 10),
			ManagementRank:              getEnvInt("WORKFLOW_MANAGEMENT_RANK", 6),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("OTEL_ENABLED", false),
			ExporterURL:    getEnv("OTEL_EXPORTER_URL", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "corrflow"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("SERVER_ENVIRONMENT", "development"),
			SamplingRatio:  getEnvFloat("OTEL_SAMPLING_RATIO", 1.0),
			Insecure:       getEnvBool("OTEL_EXPORTER_INSECURE", true),
		},
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
