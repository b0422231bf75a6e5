package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LLM provider identifiers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Completion service
	LLMProvider     string
	FastModel       string
	QualityModel    string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Orchestration
	RetryCeiling  int // max correction re-generations per turn
	ContextWindow int // most recent turns read to rebuild context

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Server
	ServerPort string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "jasper"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "conversations"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     getEnv("JASPER_LLM_PROVIDER", ProviderOllama),
		FastModel:       getEnv("JASPER_FAST_MODEL", "llama3.2"),
		QualityModel:    getEnv("JASPER_QUALITY_MODEL", "llama3.3"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),

		RetryCeiling:  getEnvInt("JASPER_RETRY_CEILING", 2),
		ContextWindow: getEnvInt("JASPER_CONTEXT_WINDOW", 50),

		LogFile:  getEnv("JASPER_LOG_FILE", "/tmp/jasper.log"),
		LogLevel: parseLogLevel(getEnv("JASPER_LOG_LEVEL", "INFO")),

		ServerPort: getEnv("JASPER_SERVER_PORT", "8787"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			return n
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
