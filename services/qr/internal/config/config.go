package config

import (
	"os"
)

// Config holds all configuration for the QR service
type Config struct {
	ServiceName      string
	HTTPPort         string
	BackendAPIURL    string
	BackendAPIToken  string
	CORSAllowOrigins string
	LogLevel         string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		ServiceName:      getEnv("SERVICE_NAME", "qr"),
		HTTPPort:         getEnv("HTTP_PORT", "8001"),
		BackendAPIURL:    getEnv("BACKEND_API_URL", ""),
		BackendAPIToken:  getEnv("BACKEND_API_TOKEN", ""),
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
