package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort    string
	DatabaseURL   string
	Environment   string
	JWTSecret     string
	ReopenOnSend  bool          // sending into an archived conversation re-activates it
	TypingTTL     time.Duration // typing indicator auto-expiry window
	WSSendBuffer  int           // per-connection outbound queue size
	MessagePageSz int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", "postgres://localhost:5432/otomart?sslmode=disable"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key"),
		ReopenOnSend:  getEnvAsBool("CHAT_REOPEN_ON_SEND", true),
		TypingTTL:     time.Duration(getEnvAsInt64("TYPING_TTL_SECONDS", 5)) * time.Second,
		WSSendBuffer:  int(getEnvAsInt64("WS_SEND_BUFFER", 256)),
		MessagePageSz: int(getEnvAsInt64("MESSAGE_PAGE_SIZE", 50)),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}
