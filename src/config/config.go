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
	DatabasePath       string
	LogLevel           string
	MaxUploadSizeBytes int64

	// Import pipeline limits
	MaxImportRows       int
	WarningDisplayLimit int
	ImportSessionTTL    time.Duration

	// OCR collaborator for screenshot imports
	OCRServiceURL string
	OCRTimeout    time.Duration

	// Symbol autocomplete catalog
	SymbolDataPath string

	// Typed phrase required before wiping all holdings
	ClearConfirmationPhrase string
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

	maxImportRows := getEnvAsInt("MAX_IMPORT_ROWS", 2000)
	if maxImportRows <= 0 {
		log.Printf("WARNING: MAX_IMPORT_ROWS must be positive, got %d. Using default 2000.", maxImportRows)
		maxImportRows = 2000
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./folioimport.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxUploadSizeBytes: maxUploadSizeBytes,

		MaxImportRows:       maxImportRows,
		WarningDisplayLimit: getEnvAsInt("WARNING_DISPLAY_LIMIT", 10),
		ImportSessionTTL:    getEnvAsDuration("IMPORT_SESSION_TTL", 30*time.Minute),

		OCRServiceURL: getEnv("OCR_SERVICE_URL", ""),
		OCRTimeout:    getEnvAsDuration("OCR_TIMEOUT", 45*time.Second),

		SymbolDataPath: getEnv("SYMBOL_DATA_PATH", "data/symbols.json"),

		ClearConfirmationPhrase: getEnv("CLEAR_CONFIRMATION_PHRASE", "DELETE ALL HOLDINGS"),
	}

	if Cfg.OCRServiceURL == "" {
		log.Println("WARNING: OCR_SERVICE_URL not set. Screenshot imports will be rejected.")
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, MaxImportRows=%d",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.MaxImportRows)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
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
