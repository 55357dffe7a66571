package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default so the service boots against a local
// MongoDB and NATS with no environment at all.
type Config struct {
	// Server
	Host            string
	AppPort         string
	PrometheusPort  string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Backends
	MongoURI string
	NATSURL  string

	// Per-operation deadline applied to store and bus calls.
	OperationTimeout time.Duration

	// Dispatch engine
	DispatchBatchSize int
	SendAttempts      int
	RetryDelay        time.Duration
	HighTickInterval  time.Duration
	LowTickInterval   time.Duration

	// Logging: "debug", "info", "warn", "error". Empty means info.
	LogLevel string
}

func Load() *Config {
	return &Config{
		Host:            getEnv("HOST", "0.0.0.0"),
		AppPort:         getEnv("APP_PORT", "8080"),
		PrometheusPort:  getEnv("PROMETHEUS_PORT", "9090"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		NATSURL:  getEnv("NATS_URL", "localhost:4222"),

		OperationTimeout: getDuration("OPERATION_TIMEOUT", 5*time.Second),

		DispatchBatchSize: getInt("DISPATCH_BATCH_SIZE", 10),
		SendAttempts:      getInt("SEND_ATTEMPTS", 3),
		RetryDelay:        getDuration("RETRY_DELAY", time.Second),
		HighTickInterval:  getDuration("HIGH_TICK_INTERVAL", time.Second),
		LowTickInterval:   getDuration("LOW_TICK_INTERVAL", 5*time.Second),

		LogLevel: getEnv("LOG_LEVEL", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
