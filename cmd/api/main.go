// main.go - The entry point: wiring, router setup and graceful shutdown.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bosocmputer/voicebill/configs"
	"github.com/bosocmputer/voicebill/internal/ai"
	"github.com/bosocmputer/voicebill/internal/api"
	"github.com/bosocmputer/voicebill/internal/conversation"
	"github.com/bosocmputer/voicebill/internal/email"
	"github.com/bosocmputer/voicebill/internal/lock"
	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/bosocmputer/voicebill/internal/messaging"
	"github.com/bosocmputer/voicebill/internal/payment"
	"github.com/bosocmputer/voicebill/internal/pdf"
	"github.com/bosocmputer/voicebill/internal/ratelimit"
	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	log, err := logger.New(configs.LOG_MODE)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Step 0.5: Set production mode
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Step 1: Document store
	store := openStore(ctx, log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("store close failed", "error", err)
		}
	}()

	// Step 2: AI providers
	extractor, prices, transcriber, closeAI := openAI(ctx, log)
	defer closeAI()

	// Step 3: Per-user lock
	locker, closeLock := openLocker(ctx, log)
	defer closeLock()

	// Step 4: Outbound integrations; each is optional
	deps := conversation.Deps{
		Store:       store,
		Locker:      locker,
		Transcriber: transcriber,
		Extractor:   extractor,
		Prices:      prices,
	}

	twilio, err := messaging.New(log, messaging.Config{
		AccountSID: configs.TWILIO_ACCOUNT_SID,
		AuthToken:  configs.TWILIO_AUTH_TOKEN,
		From:       configs.TWILIO_WHATSAPP_NUMBER,
	})
	if err != nil {
		log.Fatal("Twilio is required to download voice notes", "error", err)
	}
	deps.Media = twilio
	deps.Messenger = twilio

	renderer := pdf.NewRenderer(log, pdf.Config{
		CompanyName:    configs.BUSINESS_NAME,
		CompanyAddress: splitAddress(configs.BUSINESS_ADDRESS),
		LogoPath:       configs.BUSINESS_LOGO_PATH,
	})
	deps.PDF = renderer

	if configs.SENDGRID_API_KEY != "" {
		mailer, err := email.New(log, email.Config{
			APIKey:    configs.SENDGRID_API_KEY,
			FromEmail: configs.SENDGRID_FROM_EMAIL,
			FromName:  configs.SENDGRID_FROM_NAME,
		})
		if err != nil {
			log.Warn("e-mail disabled", "error", err)
		} else {
			deps.Mailer = mailer
		}
	}

	var payments *payment.Client
	payments, err = payment.New(log, payment.Config{
		KeyID:      configs.RAZORPAY_KEY_ID,
		KeySecret:  configs.RAZORPAY_KEY_SECRET,
		TestModeOn: configs.RAZORPAY_TEST_MODE,
		BackendURL: configs.BACKEND_URL,
	})
	if err != nil {
		log.Warn("payment links disabled", "error", err)
		payments = nil
	} else {
		deps.Payments = payments
	}

	// Step 5: Conversation dispatcher
	dispatcher, err := conversation.New(log, deps, conversation.Config{
		TaxRate:          configs.TAX_RATE,
		DefaultItemPrice: configs.DEFAULT_ITEM_PRICE,
		BackendURL:       configs.BACKEND_URL,
	})
	if err != nil {
		log.Fatal("dispatcher setup failed", "error", err)
	}

	// Step 6: HTTP handlers
	apiDeps := api.Deps{
		Store:      store,
		Dispatcher: dispatcher,
		PDF:        renderer,
		Messenger:  twilio,
	}
	if payments != nil {
		apiDeps.Payments = payments
		apiDeps.Callbacks = payments
	}
	apiCfg := api.Config{PublicURL: configs.BACKEND_URL}
	if configs.TWILIO_VALIDATE_SIGNATURE {
		apiCfg.WebhookToken = configs.TWILIO_AUTH_TOKEN
	}
	handler, err := api.NewHandler(log, apiDeps, apiCfg)
	if err != nil {
		log.Fatal("handler setup failed", "error", err)
	}

	// Step 7: Initialize the Gin router
	router := gin.New()
	router.Use(gin.Recovery())

	// Add CORS middleware - configure allowed origins for production
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", configs.ALLOWED_ORIGINS)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})
	handler.Register(router)

	// Step 8: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:           ":" + configs.PORT,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   4 * time.Minute, // voice notes wait on transcription and extraction
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server", "port", configs.PORT, "storage", configs.STORAGE_MODE, "ai", configs.AI_PROVIDER)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}

func openStore(ctx context.Context, log *logger.Logger) storage.Store {
	if configs.STORAGE_MODE == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryStore()
	}
	store, err := storage.InitMongoDB(ctx, log, configs.MONGO_URI, configs.MONGO_DB_NAME, time.Duration(configs.STORE_TIMEOUT)*time.Second)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	return store
}

func openAI(ctx context.Context, log *logger.Logger) (ai.Extractor, ai.PriceParser, ai.Transcriber, func()) {
	if configs.AI_PROVIDER == "none" {
		log.Warn("AI disabled, every voice note becomes a placeholder invoice")
		return ai.Disabled{}, ai.Disabled{}, ai.Disabled{}, func() {}
	}

	limiter := ratelimit.NewRateLimiter(configs.RATE_LIMIT_TOKENS, time.Duration(configs.RATE_LIMIT_REFILL_SECONDS)*time.Second)
	gemini, err := ai.NewGeminiClient(ctx, log, ai.GeminiConfig{
		APIKey:             configs.GEMINI_API_KEY,
		Model:              configs.MODEL_NAME,
		TranscriptionModel: configs.TRANSCRIPTION_MODEL_NAME,
		Timeout:            time.Duration(configs.AI_TIMEOUT) * time.Second,
	}, limiter)
	if err != nil {
		log.Fatal("Gemini setup failed", "error", err)
	}

	transcriber, err := ai.CreateTranscriber(ctx, log, ai.TranscriberConfig{
		Provider: configs.TRANSCRIPTION_PROVIDER,
		Speech: ai.SpeechConfig{
			LanguageCode:         configs.SPEECH_LANGUAGE_CODE,
			AlternativeLanguages: []string{"hi-IN"},
			SampleRateHertz:      configs.SPEECH_SAMPLE_RATE_HZ,
		},
	}, gemini)
	if err != nil {
		log.Fatal("transcriber setup failed", "error", err)
	}

	return gemini, gemini, transcriber, func() {
		if s, ok := transcriber.(*ai.SpeechTranscriber); ok {
			_ = s.Close()
		}
		_ = gemini.Close()
	}
}

func openLocker(ctx context.Context, log *logger.Logger) (lock.Locker, func()) {
	if configs.REDIS_ADDR == "" {
		return lock.NewLocalLocker(), func() {}
	}
	rl, err := lock.NewRedisLocker(ctx, log, lock.RedisConfig{
		Addr: configs.REDIS_ADDR,
		TTL:  time.Duration(configs.LOCK_TTL_SECONDS) * time.Second,
	})
	if err != nil {
		log.Warn("redis unavailable, using in-process lock", "error", err)
		return lock.NewLocalLocker(), func() {}
	}
	return rl, func() { _ = rl.Close() }
}

func splitAddress(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "|") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
