package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	LogLevel           string
	AllowedOrigin      string
	MaxUploadSizeBytes int64

	TradeLogPath string
	UploadsDir   string
	ProcessedDir string

	OCRBaseURL   string
	OCRTimeout   time.Duration
	OCRRateLimit float64 // OCR calls per second

	DeepSeekAPIKey  string
	DeepSeekAPIBase string
	DeepSeekModel   string
	DeepSeekTimeout time.Duration
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	ocrRateLimitStr := getEnv("OCR_RATE_LIMIT", "2")
	ocrRateLimit, err := strconv.ParseFloat(ocrRateLimitStr, 64)
	if err != nil || ocrRateLimit <= 0 {
		log.Printf("WARNING: Invalid OCR_RATE_LIMIT '%s'. Using default 2/s. Error: %v", ocrRateLimitStr, err)
		ocrRateLimit = 2
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		MaxUploadSizeBytes: maxUploadSizeBytes,

		TradeLogPath: getEnv("TRADE_LOG_PATH", "logs/trade_log.jsonl"),
		UploadsDir:   getEnv("UPLOADS_DIR", "uploads"),
		ProcessedDir: getEnv("PROCESSED_DIR", "processed"),

		OCRBaseURL:   getEnv("OCR_BASE_URL", "http://localhost:8884"),
		OCRTimeout:   getEnvAsDuration("OCR_TIMEOUT", 30*time.Second),
		OCRRateLimit: ocrRateLimit,

		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekAPIBase: getEnv("DEEPSEEK_API_BASE", "https://api.deepseek.com"),
		DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		DeepSeekTimeout: getEnvAsDuration("DEEPSEEK_TIMEOUT", 60*time.Second),
	}

	if Cfg.DeepSeekAPIKey == "" {
		log.Println("WARNING: DEEPSEEK_API_KEY not set. AI trade structuring disabled; extraction will rely on pattern matching only.")
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, TradeLog=%s, OCR=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.TradeLogPath, Cfg.OCRBaseURL)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
