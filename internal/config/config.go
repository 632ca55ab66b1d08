package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LogLevel     string
	LogFormat    string // "json" or "pretty"

	// OCR pool configuration
	MaxEngines             int
	OCRTimeout             time.Duration
	MinConfidence          float64
	MediumQualityThreshold float64
	HighQualityThreshold   float64

	// OCR engine configuration
	OCREngineURL     string
	OCREngineTimeout time.Duration

	// Offline store configuration
	StoragePath       string
	KeyIterations     int
	SaveRetryBase     time.Duration
	SaveRetryAttempts int

	// Rewards backend configuration
	RewardsAPIURL  string
	RewardsAPIKey  string
	RewardsTimeout time.Duration
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env file. Using environment variables.")
	}

	// Create and populate config
	config := &Config{
		// Server configuration
		Port:         getEnvInt("PORT", 8080),
		ReadTimeout:  time.Duration(getEnvInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvInt("WRITE_TIMEOUT", 60)) * time.Second,
		LogLevel:     getEnvString("LOG_LEVEL", "info"),
		LogFormat:    getEnvString("LOG_FORMAT", "json"),

		// OCR pool configuration
		MaxEngines:             getEnvInt("MAX_OCR_ENGINES", 2),
		OCRTimeout:             time.Duration(getEnvInt("OCR_TIMEOUT", 30)) * time.Second,
		MinConfidence:          getEnvFloat("OCR_MIN_CONFIDENCE", 30),
		MediumQualityThreshold: getEnvFloat("OCR_MEDIUM_QUALITY_THRESHOLD", 60),
		HighQualityThreshold:   getEnvFloat("OCR_HIGH_QUALITY_THRESHOLD", 85),

		// OCR engine configuration
		OCREngineURL:     os.Getenv("OCR_ENGINE_URL"),
		OCREngineTimeout: time.Duration(getEnvInt("OCR_ENGINE_TIMEOUT", 60)) * time.Second,

		// Offline store configuration
		StoragePath:       getEnvString("STORAGE_PATH", "receipt-rewards.db"),
		KeyIterations:     getEnvInt("KEY_ITERATIONS", 10000),
		SaveRetryBase:     time.Duration(getEnvInt("SAVE_RETRY_BASE_MS", 500)) * time.Millisecond,
		SaveRetryAttempts: getEnvInt("SAVE_RETRY_ATTEMPTS", 3),

		// Rewards backend configuration
		RewardsAPIURL:  os.Getenv("REWARDS_API_URL"),
		RewardsAPIKey:  os.Getenv("REWARDS_API_KEY"),
		RewardsTimeout: time.Duration(getEnvInt("REWARDS_TIMEOUT", 30)) * time.Second,
	}

	// Validate critical configuration
	validateConfig(config)

	return config, nil
}

// validateConfig checks if critical configuration values are set and logs warnings if they're missing
func validateConfig(config *Config) {
	// Check if the OCR engine endpoint is provided
	if config.OCREngineURL == "" {
		log.Println("Warning: No OCR engine URL provided. Recognition requests will fail.")
	}

	// Check if the rewards backend is provided
	if config.RewardsAPIURL == "" {
		log.Println("Warning: No rewards API URL provided. Receipts will be processed locally without point submission.")
	}

	if config.MaxEngines <= 0 {
		log.Printf("Invalid MAX_OCR_ENGINES %d, using default: 2", config.MaxEngines)
		config.MaxEngines = 2
	}
}

// getEnvInt gets an integer from an environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// getEnvFloat gets a float from an environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %g", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// getEnvBool gets a boolean from an environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

// getEnvString gets a string from an environment variable with a default value
func getEnvString(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
