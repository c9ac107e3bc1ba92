package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	LogLevel        string
	DatabaseURL     string
	NatsURL         string
	NatsToken       string
	GroqAPIKey      string
	CompletionModel string
	EmbeddingModel  string
	SystemPrompt    string

	// Conversation store limits. Zero means unlimited.
	MaxConversations int
	MaxTurns         int
	ConversationTTL  time.Duration
}

func Load() Config {
	return Config{
		Port:             envInt("SCRIBE_PORT", 8760),
		LogLevel:         envStr("LOG_LEVEL", "info"),
		DatabaseURL:      envStr("DATABASE_URL", ""),
		NatsURL:          envStr("NATS_URL", ""),
		NatsToken:        envStr("NATS_TOKEN", ""),
		GroqAPIKey:       envStr("GROQ_API_KEY", ""),
		CompletionModel:  envStr("SCRIBE_COMPLETION_MODEL", "gpt-4o-mini"),
		EmbeddingModel:   envStr("SCRIBE_EMBEDDING_MODEL", "text-embedding-3-small"),
		SystemPrompt:     envStr("AI_SYSTEM_PROMPT", "You are an email assistant."),
		MaxConversations: envInt("SCRIBE_MAX_CONVERSATIONS", 1000),
		MaxTurns:         envInt("SCRIBE_MAX_TURNS", 200),
		ConversationTTL:  envDuration("SCRIBE_CONVERSATION_TTL", 12*time.Hour),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
