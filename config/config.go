// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	MigrationTable     string
	MigrationsDir      string
	Sprinkles          []string
	GoogleCloudProject string
	LogLevel           string

	OtelEnabled      bool
	OtelEndpoint     string
	OtelInsecure     bool
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrationTable:     getEnv("MIGRATION_TABLE", "migrations"),
		MigrationsDir:      os.Getenv("MIGRATIONS_DIR"),
		Sprinkles:          splitList(getEnv("SPRINKLES", "core,account")),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		OtelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelInsecure:       getEnvBool("OTEL_INSECURE", false),
		OtelServiceName:    getEnv("OTEL_SERVICE_NAME", "sprinkle-migrator"),
		OtelSamplingRate:   getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// splitList はカンマ区切りの文字列を空要素を除いたスライスに変換する。
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
