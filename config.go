package main

import (
	"log"
	"os"
	"strconv"
)

// appConfig holds everything the server reads from the environment.
// Loaded once in main() after godotenv has had a chance to populate os.Environ.
type appConfig struct {
	Addr        string
	DatabaseURL string

	// JWTSecret signs and verifies session tokens.
	JWTSecret string

	// ExposeDBErrors controls whether raw store error messages are returned
	// to clients on 500s. Off by default; turn on for local debugging only.
	ExposeDBErrors bool

	Weights CompatibilityWeights

	RateLimitPerSecond float64
	RateLimitBurst     int

	AllowedOrigins []string
}

var cfg appConfig

func loadConfig() appConfig {
	c := appConfig{
		Addr:        envStr("ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   envStr("JWT_SECRET", "your_secret_key_please_change_in_production"),
		Weights: CompatibilityWeights{
			SharedInterests:          envFloat("WEIGHT_SHARED_INTERESTS", 10),
			IntentCompatibility:      envFloat("WEIGHT_INTENT", 5),
			OrientationCompatibility: envFloat("WEIGHT_ORIENTATION", 3),
		},
		ExposeDBErrors:     envBool("EXPOSE_DB_ERRORS", false),
		RateLimitPerSecond: envFloat("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     envInt("RATE_LIMIT_BURST", 40),
		AllowedOrigins: []string{
			envStr("FRONTEND_ORIGIN", "http://localhost:5173"),
		},
	}
	return c
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %g", key, v, fallback)
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %t", key, v, fallback)
		return fallback
	}
	return b
}
