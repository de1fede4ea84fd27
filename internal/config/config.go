package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=medchain port=5432 sslmode=disable"

type Config struct {
	HTTPPort           string
	DatabaseDSN        string
	JWTSecret          string
	VerificationSecret string // HMAC key for distribution verification codes
	CORSOrigins        string
	RedisAddress       string // empty disables the cross-instance batch lock
	LogLevel           string
	PhoneRegion        string
}

func Load() *Config {
	// .env is optional; production injects the environment directly
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found")
	}

	cfg := &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:  getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		CORSOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		RedisAddress: getEnv("REDIS_ADDRESS", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		PhoneRegion:  getEnv("PHONE_REGION", "IN"),
	}
	cfg.VerificationSecret = getEnv("VERIFICATION_SECRET", cfg.JWTSecret)

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		logrus.Fatal("JWT_SECRET must be at least 32 characters")
	}
	if cfg.DatabaseDSN == defaultDSN {
		logrus.Warn("DATABASE_DSN is using the default local value")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		logrus.Warn("CORS_ALLOWED_ORIGINS is using the default local value")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
