package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/readaloudhq/readaloud/internal/api"
	"github.com/readaloudhq/readaloud/internal/config"
	"github.com/readaloudhq/readaloud/internal/db"
	"github.com/readaloudhq/readaloud/internal/limiter"
	"github.com/readaloudhq/readaloud/internal/services"
	"github.com/readaloudhq/readaloud/internal/storage"
	"github.com/readaloudhq/readaloud/internal/worker"
)

func main() {
	log.Println("Starting ReadAloud API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Rate limiter — optional, enabled when Redis is configured
	var rateLimiter *limiter.Limiter
	if cfg.RedisURL != "" {
		rateLimiter, err = limiter.New(cfg.RedisURL, cfg.RateLimitPerMinute)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rateLimiter.Close()
		log.Printf("Rate limiting enabled (%d generations/minute)", cfg.RateLimitPerMinute)
	}

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	// Initialize TTS provider — RunPod preferred, ElevenLabs as fallback
	var ttsSvc services.TTSService
	if cfg.RunPodAPIToken != "" {
		ttsSvc = services.NewRunPodService(cfg.RunPodAPIToken, cfg.RunPodEndpoint, cfg.DefaultSpeed)
		log.Printf("TTS provider: RunPod Kokoro (endpoint: %s)", cfg.RunPodEndpoint)
	} else {
		ttsSvc = services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
		log.Println("TTS provider: ElevenLabs (model: eleven_flash_v2_5)")
	}

	// Initialize metadata provider — Groq preferred, Gemini fallback,
	// text-derived metadata when neither key is set
	var metaSvc services.MetadataService
	switch {
	case cfg.GroqAPIKey != "":
		metaSvc = services.NewGroqService(cfg.GroqAPIKey)
	case cfg.GeminiKey != "":
		metaSvc = services.NewGeminiService(cfg.GeminiKey)
	default:
		metaSvc = services.FallbackMetadataService{}
	}
	log.Printf("Metadata provider: %v", metaSvc)

	ffmpegSvc := services.NewFFmpegService()

	// Create the job lifecycle manager
	w := worker.New(database, stor, ttsSvc, metaSvc, ffmpegSvc, cfg.MaxTextLength, cfg.JobTimeout)

	// Create API handler
	handler := api.NewHandler(w, cfg.PlaylistPIN)
	router := api.NewRouter(handler, api.RouterConfig{
		TTSAPIKey:          cfg.TTSAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		Limiter:            rateLimiter,
	})

	if cfg.TTSAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No TTS_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// In-flight generation workflows settle through the store; the shutdown
	// window only needs to cover open HTTP requests.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
