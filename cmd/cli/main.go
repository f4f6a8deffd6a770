package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/ai"
	"github.com/finlog/finlog/internal/attachments"
	"github.com/finlog/finlog/internal/auth"
	"github.com/finlog/finlog/internal/config"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/export"
	"github.com/finlog/finlog/internal/infra/postgres"
	"github.com/finlog/finlog/internal/jobs"
	"github.com/finlog/finlog/internal/logger"
	"github.com/finlog/finlog/internal/pipeline"
	"github.com/finlog/finlog/internal/ratelimit"
	"github.com/finlog/finlog/internal/receipt"
	"github.com/finlog/finlog/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scan":
		runScan(log)
	case "upload":
		runUpload(log)
	case "export":
		runExport(log)
	case "summary":
		runSummary(log)
	case "token":
		runToken(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finlog CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  scan      Extract a draft transaction from a receipt image")
	fmt.Println("  upload    Upload a receipt image to GCS")
	fmt.Println("  export    Re-export a user's transactions to the configured sinks")
	fmt.Println("  summary   Print income and expense totals for a date range")
	fmt.Println("  token     Issue a session token for local testing")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func loadConfig(log zerolog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

func openDB(ctx context.Context, cfg *config.Config, log zerolog.Logger) *sql.DB {
	db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	return db
}

func runScan(log zerolog.Logger) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the receipt image")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of an uploaded receipt image (instead of -file)")
	userID := fs.String("user", "", "User ID owning the catalogs")
	save := fs.Bool("save", false, "Save the draft as a transaction")
	fs.Parse(os.Args[2:])

	if (*filePath == "") == (*gcsURI == "") || *userID == "" {
		log.Fatal().Msg("Usage: cli scan (-file PATH | -gcs-uri gs://BUCKET/OBJECT) -user ID [-save]")
	}

	cfg := loadConfig(log)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	data, err := readImage(ctx, cfg, *filePath, *gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read image")
	}

	db := openDB(ctx, cfg, log)
	defer db.Close()

	model, err := ai.NewGemini(ctx, ai.Config{APIKey: cfg.AI.APIKey, Model: cfg.AI.Model, ChatAttempts: cfg.AI.ChatMaxAttempts}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	validator := validation.New()
	catalogRepo := postgres.NewCatalogRepository(db)
	transactions := pipeline.NewService(postgres.NewTransactionRepository(db), catalogRepo, validator, nil, log)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), true, log)

	svc := receipt.NewService(receipt.NewExtractor(catalogRepo, model, validator, log), limiter, transactions, int(cfg.Server.MaxReceiptBytes))

	result, err := svc.Scan(ctx, *userID, receipt.ScanRequest{
		Image: base64.StdEncoding.EncodeToString(data),
		Save:  *save,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Scan failed")
	}

	printJSON(result)
}

func readImage(ctx context.Context, cfg *config.Config, filePath, gcsURI string) ([]byte, error) {
	if filePath != "" {
		return os.ReadFile(filePath)
	}

	bucket, object, err := attachments.ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}
	store, err := attachments.NewGCSStore(ctx, bucket, cfg.Storage.CredentialsFile)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Get(ctx, object, cfg.Server.MaxReceiptBytes)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the receipt image")
	userID := fs.String("user", "", "User ID the image belongs to")
	contentType := fs.String("content-type", "", "Content type (sniffed when empty)")
	fs.Parse(os.Args[2:])

	if *filePath == "" || *userID == "" {
		log.Fatal().Msg("Usage: cli upload -file PATH -user ID")
	}

	cfg := loadConfig(log)
	if cfg.Storage.Bucket == "" {
		log.Fatal().Msg("GCS_BUCKET is not set")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	ctx := logger.WithContext(context.Background(), log)

	store, err := attachments.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer store.Close()

	log.Info().
		Str("bucket", cfg.Storage.Bucket).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	att, err := attachments.NewService(store, int(cfg.Server.MaxReceiptBytes)).Upload(ctx, *userID, *contentType, bytes.NewReader(data))
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, att.URL)
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	userID := fs.String("user", "", "User ID to export")
	from := fs.String("from", "", "First date (YYYY-MM-DD)")
	to := fs.String("to", "", "Last date (YYYY-MM-DD)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli export -user ID [-from DATE] [-to DATE]")
	}
	rng := parseRange(log, *from, *to)

	cfg := loadConfig(log)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	db := openDB(ctx, cfg, log)
	defer db.Close()

	var sinks []export.Sink
	if cfg.NotionEnabled() {
		sinks = append(sinks, export.NewNotionSink(export.NewNotionClient(cfg.Export.NotionToken), cfg.Export.NotionDatabaseID))
	}
	if cfg.BigQueryEnabled() {
		bq, err := export.NewBigQuerySink(ctx, cfg.Export.BigQueryProject, cfg.Export.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery sink")
		}
		defer bq.Close()
		sinks = append(sinks, bq)
	}

	dispatcher := export.NewDispatcher(log, sinks...)
	if !dispatcher.Enabled() {
		log.Fatal().Msg("No export sinks configured")
	}

	txs, err := postgres.NewTransactionRepository(db).ListByDateRange(ctx, *userID, rng)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	var failed int
	for i := range txs {
		tx := txs[i]
		job := &jobs.ExportTransactionJob{
			JobID:         uuid.NewString(),
			UserID:        tx.UserID,
			TransactionID: tx.ID,
			Action:        jobs.ExportUpsert,
			Transaction:   &tx,
			Status:        jobs.JobStatusRunning,
			CreatedAt:     time.Now(),
		}
		if err := dispatcher.Handle(ctx, job); err != nil {
			failed++
			log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Export failed")
		}
	}

	fmt.Printf("Exported %d of %d transactions (%s to %s)\n", len(txs)-failed, len(txs), rng.From, rng.To)
	if failed > 0 {
		os.Exit(1)
	}
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	from := fs.String("from", "", "First date (YYYY-MM-DD)")
	to := fs.String("to", "", "Last date (YYYY-MM-DD)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli summary -user ID [-from DATE] [-to DATE]")
	}
	rng := parseRange(log, *from, *to)

	cfg := loadConfig(log)
	ctx := logger.WithContext(context.Background(), log)

	db := openDB(ctx, cfg, log)
	defer db.Close()

	summary, err := postgres.NewTransactionRepository(db).Summary(ctx, *userID, rng)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute summary")
	}

	fmt.Printf("\n=== Summary %s to %s ===\n", summary.From, summary.To)
	fmt.Printf("Income:       %s\n", summary.Income.StringFixed(2))
	fmt.Printf("Expense:      %s\n", summary.Expense.StringFixed(2))
	fmt.Printf("Net:          %s\n", summary.Net.StringFixed(2))
	fmt.Printf("Transactions: %d\n", summary.Count)
	for _, c := range summary.ByCategory {
		fmt.Printf("  %-20s %-8s %10s (%d)\n", c.Name, c.Type, c.Total.StringFixed(2), c.Count)
	}
	fmt.Println()
}

func runToken(log zerolog.Logger) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user", "", "User ID (token subject)")
	email := fs.String("email", "", "Email claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Usage: cli token -user ID [-email EMAIL] [-ttl 24h]")
	}

	cfg := loadConfig(log)
	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("AUTH_JWT_SECRET is not set")
	}

	token, err := auth.NewHMACVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience).Issue(*userID, *email, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}
	fmt.Println(token)
}

// parseRange defaults to the current month when a bound is missing.
func parseRange(log zerolog.Logger, from, to string) domain.DateRange {
	rng := domain.MonthOf(civil.DateOf(time.Now()))
	for _, p := range []struct {
		raw string
		dst *civil.Date
	}{{from, &rng.From}, {to, &rng.To}} {
		if p.raw == "" {
			continue
		}
		d, err := civil.ParseDate(p.raw)
		if err != nil {
			log.Fatal().Err(err).Str("date", p.raw).Msg("Invalid date")
		}
		*p.dst = d
	}
	if rng.To.Before(rng.From) {
		log.Fatal().Msg("-to must not be before -from")
	}
	return rng
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
	}
}
