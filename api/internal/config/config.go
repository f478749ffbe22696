package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries everything the gateway reads from the environment.
// Provider secrets are loaded as-is: their absence is reported per
// request with a 500-class error code, never as a startup failure.
type Config struct {
	Port     string
	BuildTag string
	LogLevel string

	AllowedOrigins []string

	PerMinuteLimit   int
	PerDayLimit      int
	MaxBodyBytes     int64
	MaxQuestionChars int

	StoreType     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	TurnstileSecret string

	LLMEngine    string
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	perMinute, err := intEnv("RATE_LIMIT_PER_MINUTE", 8)
	if err != nil {
		return nil, err
	}
	perDay, err := intEnv("RATE_LIMIT_PER_DAY", 80)
	if err != nil {
		return nil, err
	}
	maxBody, err := intEnv("MAX_BODY_BYTES", 10000)
	if err != nil {
		return nil, err
	}
	maxChars, err := intEnv("MAX_QUESTION_CHARS", 800)
	if err != nil {
		return nil, err
	}
	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:     getEnv("PORT", "8000"),
		BuildTag: getEnv("BUILD_TAG", "OPENAI_V1_2026-02-25"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AllowedOrigins: splitEnv("ALLOWED_ORIGINS",
			"https://rag-linkedin-portfolio.pages.dev,http://localhost:5173"),

		PerMinuteLimit:   perMinute,
		PerDayLimit:      perDay,
		MaxBodyBytes:     int64(maxBody),
		MaxQuestionChars: maxChars,

		StoreType:     getEnv("STORE_TYPE", "redis"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		TurnstileSecret: os.Getenv("TURNSTILE_SECRET_KEY"),

		LLMEngine:    getEnv("LLM_ENGINE", "openai"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
	}, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return v, nil
}

func splitEnv(k, def string) []string {
	raw := getEnv(k, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
