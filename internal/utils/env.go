package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from .env files. Missing files are ignored.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an integer or a default value
func GetEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvBool accepts anything strconv.ParseBool does.
func GetEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvDuration reads a Go duration ("2s", "500ms"). A bare integer is taken as milliseconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
