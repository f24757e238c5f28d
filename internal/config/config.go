package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	SchemasDir  string
	RunsDBPath  string
	LogLevel    string
	OutputDir   string
	Workers     int
	MetricsAddr string
	BindAddr    string
}

// Load reads MOCKDATA_* variables. A .env file in the working directory
// fills in variables that are not already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		SchemasDir:  getEnv("MOCKDATA_SCHEMAS_DIR", "./schemas"),
		RunsDBPath:  getEnv("MOCKDATA_RUNS_DB", "./mockdata-runs.sqlite"),
		LogLevel:    getEnv("MOCKDATA_LOG_LEVEL", "info"),
		OutputDir:   getEnv("MOCKDATA_OUTPUT_DIR", "./out"),
		Workers:     getEnvInt("MOCKDATA_WORKERS", 0),
		MetricsAddr: getEnv("MOCKDATA_METRICS_ADDR", ""),
		BindAddr:    getEnv("MOCKDATA_BIND", ":8080"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
