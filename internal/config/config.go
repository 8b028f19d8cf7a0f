package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Ai        AIConfig
	Messaging MessagingConfig
	Webhook   WebhookConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LLMLogFilePath     string
	CorsAllowedOrigins string
}

type DatabaseConfig struct {
	Connection string
	LogLevel   string // "silent", "error", "warn", "info"
}

type AuthConfig struct {
	JwtSecret string
}

type AIConfig struct {
	Provider            string // "openai" or "gemini"
	ProviderTimeout     time.Duration
	SimilarityThreshold float64

	OpenAIApiKey         string
	OpenAIBaseURL        string
	OpenAIChatModel      string
	OpenAIEmbeddingModel string

	GeminiApiKey         string
	GeminiChatModel      string
	GeminiEmbeddingModel string
	GeminiBatchChunkSize int
}

type MessagingConfig struct {
	NatsURL                string
	RedisURL               string
	NotificationTopic      string // inbound batch-completion notifications
	GeminiBatchJobTopic    string
	EmbeddingSubmitMaxSize int
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

type WebhookConfig struct {
	OpenAISecret string
	DedupTTL     time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			LogLevel:   getEnv("DB_LOG_LEVEL", "warn"),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			Provider:            getEnv("LLM_PROVIDER", "openai"),
			ProviderTimeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.65),

			OpenAIApiKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
			OpenAIChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),

			GeminiApiKey:         getEnv("GOOGLE_GEMINI_API_KEY", ""),
			GeminiChatModel:      getEnv("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
			GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
			GeminiBatchChunkSize: getEnvAsInt("GEMINI_BATCH_CHUNK_SIZE", 100),
		},
		Messaging: MessagingConfig{
			NatsURL:                getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
			NotificationTopic:      getEnv("EMBEDDING_NOTIFICATION_TOPIC", "EMBEDDING_NOTIFICATION"),
			GeminiBatchJobTopic:    getEnv("GEMINI_BATCH_JOB_TOPIC", "GEMINI_BATCH_EMBEDDING"),
			EmbeddingSubmitMaxSize: getEnvAsInt("EMBEDDING_SUBMIT_MAX", 5000),
		},
		Webhook: WebhookConfig{
			OpenAISecret: getEnv("OPENAI_WEBHOOK_SECRET", ""),
			DedupTTL:     getEnvAsDuration("WEBHOOK_DEDUP_TTL", 24*time.Hour),
		},
		Tracing: TracingConfig{
			Enabled:  getEnv("OTEL_ENABLED", "false") == "true",
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("45s", "2m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}
