package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string

	LLMProvider        string
	LLMTimeoutSeconds  int
	OpenRouterAPIKey   string
	OpenRouterModel    string
	OpenRouterBaseURL  string
	OpenRouterAppTitle string
	OpenRouterReferer  string
	OllamaBaseURL      string
	OllamaModel        string
	GeminiAPIKey       string
	GeminiModel        string

	KVBackend            string
	DatabaseURL          string
	RedisURL             string
	FirestoreProjectID   string
	FirestoreCollection  string
	ObjectStoreType      string
	LocalStoreDir        string
	AWSRegion            string
	S3Bucket             string
	S3Prefix             string
	SSEKMSKeyID          string
	StatusQueue          string
	StatusSQSQueueURL    string
	AMQPURL              string
	AMQPExchange         string
	AnalyzeRatePerSecond float64
	AnalyzeRateBurst     int
	MaxUploadBytes       int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	kvBackend := normalizeKVBackend(getEnv("KV_BACKEND", ""), dbURL)

	if env == "production" && kvBackend == "memory" {
		log.Printf("KV_BACKEND=memory in production; records will not survive restarts")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,

		LLMProvider:        strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openrouter"))),
		LLMTimeoutSeconds:  getEnvInt("LLM_TIMEOUT_SECONDS", 120),
		OpenRouterAPIKey:   strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterModel:    strings.TrimSpace(getEnv("OPENROUTER_MODEL", "openrouter/free")),
		OpenRouterBaseURL:  strings.TrimSpace(getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")),
		OpenRouterAppTitle: getEnv("OPENROUTER_APP_TITLE", "Resumind"),
		OpenRouterReferer:  getEnv("OPENROUTER_REFERER", ""),
		OllamaBaseURL:      strings.TrimSpace(getEnv("OLLAMA_BASE_URL", "http://localhost:11434")),
		OllamaModel:        strings.TrimSpace(getEnv("OLLAMA_MODEL", "llama3.1")),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:        strings.TrimSpace(getEnv("GEMINI_MODEL", "gemini-2.5-flash")),

		KVBackend:            kvBackend,
		DatabaseURL:          dbURL,
		RedisURL:             getEnv("REDIS_URL", ""),
		FirestoreProjectID:   getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCollection:  getEnv("KV_FIRESTORE_COLLECTION", "kv"),
		ObjectStoreType:      normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:        getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:            getEnv("AWS_REGION", ""),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		S3Prefix:             getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:          getEnv("SSE_KMS_KEY_ID", ""),
		StatusQueue:          normalizeStatusQueue(getEnv("STATUS_QUEUE", "none")),
		StatusSQSQueueURL:    getEnv("STATUS_SQS_QUEUE_URL", ""),
		AMQPURL:              getEnv("AMQP_URL", ""),
		AMQPExchange:         getEnv("AMQP_EXCHANGE", "resume_status"),
		AnalyzeRatePerSecond: getEnvFloat("ANALYZE_RATE_PER_SECOND", 0.2),
		AnalyzeRateBurst:     getEnvInt("ANALYZE_RATE_BURST", 5),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid int %q; using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		log.Printf("config %s invalid float %q; using %g", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// normalizeKVBackend picks postgres when only DATABASE_URL is set. Unknown
// names pass through so bootstrap can refuse them.
func normalizeKVBackend(raw, dbURL string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "postgres", "pg":
		return "postgres"
	case "redis":
		return "redis"
	case "firestore":
		return "firestore"
	case "memory":
		return "memory"
	case "":
	default:
		return name
	}
	if strings.TrimSpace(dbURL) != "" {
		return "postgres"
	}
	return "memory"
}

func normalizeStatusQueue(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	case "amqp", "rabbitmq":
		return "amqp"
	default:
		return "none"
	}
}
