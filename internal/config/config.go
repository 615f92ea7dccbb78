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
	Cache     CacheConfig
	Embedding EmbeddingConfig
	Vision    VisionConfig
	Retrieval RetrievalConfig
	Retry     RetryConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	UploadDir          string
	EmbedChartTopic    string
	AnalysisPromptPath string
}

type CacheConfig struct {
	Backend  string // "memory", "disk" or "redis"
	Dir      string
	RedisURL string
}

type EmbeddingConfig struct {
	Provider    string // "clip" or "signature"
	ClipBaseURL string
}

type VisionConfig struct {
	Provider      string // "gemini" or "ollama"
	GeminiAPIKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string
	Temperature   float64
	MaxTokens     int
}

type RetrievalConfig struct {
	TopK            int
	SimilarityFloor float64
}

type RetryConfig struct {
	MaxAttempts uint
	InitialWait time.Duration
	PerCallTime time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
			EmbedChartTopic:    getEnv("EMBED_CHART_TOPIC_NAME", "EMBED_CHART"),
			AnalysisPromptPath: getEnv("ANALYSIS_PROMPT_PATH", ""),
		},
		Cache: CacheConfig{
			Backend:  getEnv("CACHE_BACKEND", "memory"),
			Dir:      getEnv("CACHE_DIR", "cache"),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Embedding: EmbeddingConfig{
			Provider:    getEnv("EMBEDDING_PROVIDER", "clip"),
			ClipBaseURL: getEnv("CLIP_BASE_URL", "http://localhost:8750"),
		},
		Vision: VisionConfig{
			Provider:      getEnv("VISION_PROVIDER", "gemini"),
			GeminiAPIKey:  getEnv("GOOGLE_GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_VISION_MODEL", "gemini-2.0-flash"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_VISION_MODEL", "llama3.2-vision"),
			Temperature:   getEnvAsFloat("VISION_TEMPERATURE", 0.2),
			MaxTokens:     getEnvAsInt("VISION_MAX_TOKENS", 1024),
		},
		Retrieval: RetrievalConfig{
			TopK:            getEnvAsInt("RETRIEVAL_TOP_K", 3),
			SimilarityFloor: getEnvAsFloat("SIMILARITY_FLOOR", -1),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsUint("RETRY_MAX_ATTEMPTS", 3),
			InitialWait: getEnvAsDuration("RETRY_INITIAL_WAIT", 500*time.Millisecond),
			PerCallTime: getEnvAsDuration("RETRY_PER_CALL_TIMEOUT", 60*time.Second),
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

func getEnvAsUint(key string, fallback uint) uint {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseUint(strValue, 10, 32); err == nil {
		return uint(value)
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
