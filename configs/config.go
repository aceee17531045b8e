// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	// Gemini AI Configuration
	AI_PROVIDER              string // "gemini" or "none" (none = placeholder extraction, local dev only)
	GEMINI_API_KEY           string
	MODEL_NAME               string
	TRANSCRIPTION_PROVIDER   string // "gemini" or "gcp_speech"
	TRANSCRIPTION_MODEL_NAME string
	SPEECH_LANGUAGE_CODE     string
	SPEECH_SAMPLE_RATE_HZ    int

	// Gemini request budget (token bucket shared by all calls)
	RATE_LIMIT_TOKENS         int
	RATE_LIMIT_REFILL_SECONDS int

	// Gemini Pricing Configuration (per 1M tokens in USD)
	GEMINI_INPUT_PRICE_PER_MILLION  float64
	GEMINI_OUTPUT_PRICE_PER_MILLION float64
	USD_TO_INR                      float64

	// Server Configuration
	PORT            string
	ALLOWED_ORIGINS string
	BACKEND_URL     string
	LOG_MODE        string

	// Storage Configuration
	STORAGE_MODE  string // "mongo" or "memory"
	MONGO_URI     string
	MONGO_DB_NAME string

	// Billing rules
	TAX_RATE           float64
	DEFAULT_ITEM_PRICE float64

	// Twilio WhatsApp
	TWILIO_ACCOUNT_SID     string
	TWILIO_AUTH_TOKEN      string
	TWILIO_WHATSAPP_NUMBER string

	// Reject webhooks whose X-Twilio-Signature does not verify
	TWILIO_VALIDATE_SIGNATURE bool

	// SendGrid e-mail
	SENDGRID_API_KEY    string
	SENDGRID_FROM_EMAIL string
	SENDGRID_FROM_NAME  string

	// Razorpay payment links
	RAZORPAY_KEY_ID     string
	RAZORPAY_KEY_SECRET string
	RAZORPAY_TEST_MODE  bool

	// Per-user processing lock
	REDIS_ADDR       string
	LOCK_TTL_SECONDS int

	// PDF branding
	BUSINESS_NAME      string
	BUSINESS_ADDRESS   string // lines separated by "|"
	BUSINESS_LOGO_PATH string

	// Timeouts in seconds
	AI_TIMEOUT    int // Timeout for a single Gemini call
	STORE_TIMEOUT int // Timeout for a single store operation
)

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AI_PROVIDER = getEnv("AI_PROVIDER", "gemini")

	// Required: Gemini API Key (unless AI is disabled for local development)
	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	if GEMINI_API_KEY == "" && AI_PROVIDER != "none" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	// Optional with defaults
	MODEL_NAME = getEnv("MODEL_NAME", "gemini-2.5-flash")
	TRANSCRIPTION_PROVIDER = getEnv("TRANSCRIPTION_PROVIDER", "gemini")
	TRANSCRIPTION_MODEL_NAME = getEnv("TRANSCRIPTION_MODEL_NAME", MODEL_NAME)
	SPEECH_LANGUAGE_CODE = getEnv("SPEECH_LANGUAGE_CODE", "en-IN")
	SPEECH_SAMPLE_RATE_HZ = getEnvInt("SPEECH_SAMPLE_RATE_HZ", 16000)

	// 12 requests, one refilled every 5s keeps clear of the free-tier RPM
	RATE_LIMIT_TOKENS = getEnvInt("RATE_LIMIT_TOKENS", 12)
	RATE_LIMIT_REFILL_SECONDS = getEnvInt("RATE_LIMIT_REFILL_SECONDS", 5)

	// Gemini Pricing (default to Flash pricing)
	GEMINI_INPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_INPUT_PRICE_PER_MILLION", 0.30)
	GEMINI_OUTPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_OUTPUT_PRICE_PER_MILLION", 2.50)
	USD_TO_INR = getEnvFloat("USD_TO_INR", 83.0)

	PORT = getEnv("PORT", "8080")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")
	BACKEND_URL = getEnv("BACKEND_URL", "http://localhost:8080")
	LOG_MODE = getEnv("LOG_MODE", "development")

	// Storage Configuration
	STORAGE_MODE = getEnv("STORAGE_MODE", "mongo")
	MONGO_URI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	MONGO_DB_NAME = getEnv("MONGO_DB_NAME", "voicebill")

	// Billing: 18% GST, nominal price for the placeholder line item
	TAX_RATE = getEnvFloat("TAX_RATE", 0.18)
	DEFAULT_ITEM_PRICE = getEnvFloat("DEFAULT_ITEM_PRICE", 100)

	TWILIO_ACCOUNT_SID = getEnv("TWILIO_ACCOUNT_SID", "")
	TWILIO_AUTH_TOKEN = getEnv("TWILIO_AUTH_TOKEN", "")
	TWILIO_WHATSAPP_NUMBER = getEnv("TWILIO_WHATSAPP_NUMBER", "whatsapp:+14155238886")
	TWILIO_VALIDATE_SIGNATURE = getEnvBool("TWILIO_VALIDATE_SIGNATURE", false)

	SENDGRID_API_KEY = getEnv("SENDGRID_API_KEY", "")
	SENDGRID_FROM_EMAIL = getEnv("SENDGRID_FROM_EMAIL", "")
	SENDGRID_FROM_NAME = getEnv("SENDGRID_FROM_NAME", "VoiceBill")

	RAZORPAY_KEY_ID = getEnv("RAZORPAY_KEY_ID", "")
	RAZORPAY_KEY_SECRET = getEnv("RAZORPAY_KEY_SECRET", "")
	RAZORPAY_TEST_MODE = getEnvBool("RAZORPAY_TEST_MODE", true)

	REDIS_ADDR = getEnv("REDIS_ADDR", "")
	LOCK_TTL_SECONDS = getEnvInt("LOCK_TTL_SECONDS", 120)

	BUSINESS_NAME = getEnv("BUSINESS_NAME", "")
	BUSINESS_ADDRESS = getEnv("BUSINESS_ADDRESS", "")
	BUSINESS_LOGO_PATH = getEnv("BUSINESS_LOGO_PATH", "")

	AI_TIMEOUT = getEnvInt("AI_TIMEOUT", 60)
	STORE_TIMEOUT = getEnvInt("STORE_TIMEOUT", 5)

	log.Println("✓ Configuration loaded successfully")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
