package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port               string
	StoreDriver        string // postgres, mongo, memory or empty
	DatabaseURL        string
	MongoURI           string
	MongoDatabase      string
	JWTSecret          string
	TokenTTL           time.Duration
	RateLimitPerMinute int
	HealthInterval     time.Duration
	CORSOrigin         string
}

func Load() Config {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		StoreDriver:        os.Getenv("STORE_DRIVER"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDatabase:      getEnv("MONGO_DATABASE", "speedtype"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 30*24*time.Hour),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		HealthInterval:     getEnvDuration("HEALTH_INTERVAL", 30*time.Second),
		CORSOrigin:         getEnv("CORS_ORIGIN", "*"),
	}
	if cfg.StoreDriver == "" {
		switch {
		case cfg.DatabaseURL != "":
			cfg.StoreDriver = "postgres"
		case cfg.MongoURI != "":
			cfg.StoreDriver = "mongo"
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
