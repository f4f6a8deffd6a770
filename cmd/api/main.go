package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finlog/finlog/internal/ai"
	"github.com/finlog/finlog/internal/api"
	"github.com/finlog/finlog/internal/api/handlers"
	"github.com/finlog/finlog/internal/attachments"
	"github.com/finlog/finlog/internal/auth"
	"github.com/finlog/finlog/internal/chat"
	"github.com/finlog/finlog/internal/config"
	"github.com/finlog/finlog/internal/export"
	"github.com/finlog/finlog/internal/infra/postgres"
	"github.com/finlog/finlog/internal/jobs"
	"github.com/finlog/finlog/internal/jobs/inmemory"
	"github.com/finlog/finlog/internal/logger"
	"github.com/finlog/finlog/internal/pipeline"
	"github.com/finlog/finlog/internal/ratelimit"
	"github.com/finlog/finlog/internal/receipt"
	"github.com/finlog/finlog/internal/validation"
	"github.com/rs/zerolog"
)

// jsonBodyLimit bounds every non-upload request body.
const jsonBodyLimit = 1 << 20

func main() {
	port := flag.String("port", "", "HTTP server port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	txRepo := postgres.NewTransactionRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)
	validator := validation.New()

	// Rate limiting
	var limiterStore ratelimit.Store
	switch cfg.RateLimit.Backend {
	case config.RateLimitRedis:
		redisStore, err := ratelimit.NewRedisStore(ratelimit.RedisConfig{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Redis rate limit store")
		}
		defer redisStore.Close()
		limiterStore = redisStore
	default:
		memStore := ratelimit.NewMemoryStore()
		go memStore.Run(ctx, cfg.RateLimit.SweepInterval)
		limiterStore = memStore
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.RateLimit.FailOpen, log)
	log.Info().
		Str("backend", cfg.RateLimit.Backend).
		Bool("fail_open", cfg.RateLimit.FailOpen).
		Msg("Rate limiter configured")

	// Export sinks and job infrastructure
	dispatcher, closeSinks := newDispatcher(ctx, cfg, log)
	defer closeSinks()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	var publisher jobs.Publisher
	if dispatcher.Enabled() {
		publisher = jobQueue
	} else {
		log.Warn().Msg("No export sinks configured - transaction export disabled")
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting export worker")
		if err := jobQueue.Start(workerCtx, dispatcher.Handle); err != nil {
			log.Error().Err(err).Msg("Export worker stopped with error")
		}
	}()

	// Domain services
	transactions := pipeline.NewService(txRepo, catalogRepo, validator, publisher, log)

	model, err := ai.NewGemini(ctx, ai.Config{
		APIKey:       cfg.AI.APIKey,
		Model:        cfg.AI.Model,
		ChatAttempts: cfg.AI.ChatMaxAttempts,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	extractor := receipt.NewExtractor(catalogRepo, model, validator, log)
	receipts := receipt.NewService(extractor, limiter, transactions, int(cfg.Server.MaxReceiptBytes))
	assistant := chat.NewService(model, limiter, log)

	h := api.Handlers{
		Health:       handlers.NewHealthHandler(txRepo, log),
		Transactions: handlers.NewTransactionsHandler(transactions, txRepo, validator.Today, log),
		Catalog:      handlers.NewCatalogHandler(catalogRepo, validator, log),
		Receipts:     handlers.NewReceiptsHandler(receipts, log),
		Chat:         handlers.NewChatHandler(assistant, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}

	if cfg.Storage.Bucket != "" {
		gcsStore, err := attachments.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer gcsStore.Close()
		h.Attachments = handlers.NewAttachmentsHandler(attachments.NewService(gcsStore, int(cfg.Server.MaxReceiptBytes)), log)
	} else {
		log.Warn().Msg("No GCS bucket configured - attachment uploads will be disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   jsonBodyLimit,
		// Receipt images arrive base64 encoded inside JSON.
		MaxUploadBytes: cfg.Server.MaxReceiptBytes*4/3 + 64<<10,
	}, newVerifier(cfg), h, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight exports finish; queued ones are dropped.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

// newVerifier accepts session tokens and Google ID tokens, whichever are configured.
func newVerifier(cfg *config.Config) auth.Verifier {
	var chain auth.Chain
	if cfg.Auth.JWTSecret != "" {
		chain = append(chain, auth.NewHMACVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience))
	}
	if cfg.Auth.GoogleClientID != "" {
		chain = append(chain, auth.NewGoogleVerifier(cfg.Auth.GoogleClientID))
	}
	return chain
}

// newDispatcher builds the configured export sinks. The returned func closes them.
func newDispatcher(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*export.Dispatcher, func()) {
	var (
		sinks   []export.Sink
		closers []func() error
	)

	if cfg.NotionEnabled() {
		sinks = append(sinks, export.NewNotionSink(export.NewNotionClient(cfg.Export.NotionToken), cfg.Export.NotionDatabaseID))
		log.Info().Msg("Notion export enabled")
	}

	if cfg.BigQueryEnabled() {
		bq, err := export.NewBigQuerySink(ctx, cfg.Export.BigQueryProject, cfg.Export.BigQueryDataset)
		if err != nil {
			// Export is best-effort; the API still serves without it.
			log.Error().Err(err).Msg("Failed to create BigQuery sink - BigQuery export disabled")
		} else {
			sinks = append(sinks, bq)
			closers = append(closers, bq.Close)
			log.Info().Str("dataset", cfg.Export.BigQueryDataset).Msg("BigQuery export enabled")
		}
	}

	return export.NewDispatcher(log, sinks...), func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("Failed to close export sink")
			}
		}
	}
}
