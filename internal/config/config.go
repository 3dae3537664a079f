package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	TTSAPIKey          string // Bearer token for /api routes (empty = no auth, dev mode)
	PlaylistPIN        string // PIN for the web playlist UI
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	BaseURL            string // Public base URL, used on the player page

	// Database
	DatabaseURL string

	// Redis (optional — enables rate limiting on /api/generate)
	RedisURL           string
	RateLimitPerMinute int

	// Supabase storage
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// RunPod (preferred TTS provider — hosted Kokoro endpoint)
	RunPodAPIToken string
	RunPodEndpoint string

	// ElevenLabs (fallback TTS provider — used when RunPod token is not set)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Groq (preferred metadata provider)
	GroqAPIKey string

	// Gemini (fallback metadata provider)
	GeminiKey string

	// Generation
	MaxTextLength int           // Characters; longer submissions are rejected
	DefaultSpeed  float64       // Synthesis speed passed to the provider
	JobTimeout    time.Duration // Outer ceiling for one generation workflow
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		TTSAPIKey:             getEnv("TTS_API_KEY", ""),
		PlaylistPIN:           getEnv("PLAYLIST_PIN", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		BaseURL:               getEnv("BASE_URL", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "generations"),
		RunPodAPIToken:        getEnv("RUNPOD_API_TOKEN", ""),
		RunPodEndpoint:        getEnv("RUNPOD_ENDPOINT", ""),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		GroqAPIKey:            getEnv("GROQ_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		MaxTextLength:         getEnvInt("MAX_TEXT_LENGTH", 25000),
		DefaultSpeed:          getEnvFloat("TTS_SPEED", 1.0),
		JobTimeout:            time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 600)) * time.Second,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	// At least one TTS provider must be configured
	if cfg.RunPodAPIToken == "" && cfg.ElevenLabsKey == "" {
		return nil, fmt.Errorf("either RUNPOD_API_TOKEN or ELEVENLABS_API_KEY is required for TTS")
	}

	if cfg.RunPodAPIToken != "" && cfg.RunPodEndpoint == "" {
		return nil, fmt.Errorf("RUNPOD_ENDPOINT is required when RUNPOD_API_TOKEN is set")
	}

	if cfg.MaxTextLength <= 0 {
		return nil, fmt.Errorf("MAX_TEXT_LENGTH must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
