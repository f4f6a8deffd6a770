package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/finlog/finlog/internal/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Target is a database that records which migrations it has applied.
type Target interface {
	EnsureSchemaMigrations(ctx context.Context) error
	Applied(ctx context.Context) ([]AppliedMigration, error)
	// Apply runs the migration and records it. Targets with transactional
	// DDL do both atomically.
	Apply(ctx context.Context, m Migration, appliedBy string) error
	Close() error
}

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

var (
	target        = flag.String("target", "postgres", "Migration target: postgres or bigquery")
	databaseURL   = flag.String("database-url", "", "Postgres connection URL (defaults to DATABASE_URL)")
	projectID     = flag.String("project", "", "GCP project ID (bigquery target, defaults to BIGQUERY_PROJECT)")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID (defaults to BIGQUERY_DATASET)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "", "Path to migrations directory (defaults to migrations/<target>)")
	allowDrift    = flag.Bool("allow-drift", false, "Continue when an applied migration's file has changed")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	log := logger.New()
	ctx := context.Background()

	dir := *migrationsDir
	if dir == "" {
		dir = filepath.Join("migrations", *target)
	}

	var (
		t            Target
		err          error
		replacements map[string]string
	)
	switch *target {
	case "postgres":
		url := firstNonEmpty(*databaseURL, os.Getenv("DATABASE_URL"))
		if url == "" {
			log.Fatal().Msg("Error: -database-url or DATABASE_URL is required")
		}
		t, err = newPostgresTarget(ctx, url)
	case "bigquery":
		project := firstNonEmpty(*projectID, os.Getenv("BIGQUERY_PROJECT"))
		dataset := firstNonEmpty(*datasetID, os.Getenv("BIGQUERY_DATASET"), "finlog")
		if project == "" {
			log.Fatal().Msg("Error: -project or BIGQUERY_PROJECT is required. Please specify your GCP project ID.")
		}
		t, err = newBigQueryTarget(ctx, project, dataset)
		replacements = map[string]string{"{{PROJECT_ID}}": project, "{{DATASET_ID}}": dataset}
	default:
		log.Fatal().Str("target", *target).Msg("Unknown target: want postgres or bigquery")
	}
	if err != nil {
		log.Fatal().Err(err).Str("target", *target).Msg("Failed to connect")
	}
	defer t.Close()

	log.Info().Str("target", *target).Str("dir", dir).Msg("Connected")

	applied, err := run(ctx, t, dir, replacements, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("count", applied).Msg("Successfully applied migrations")
	}
}

// run applies every pending migration in dir and returns how many it applied.
func run(ctx context.Context, t Target, dir string, replacements map[string]string, log zerolog.Logger) (int, error) {
	if err := t.EnsureSchemaMigrations(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations: %w", err)
	}

	migrations, err := readMigrations(dir, replacements, log)
	if err != nil {
		return 0, fmt.Errorf("reading migrations: %w", err)
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	appliedMigrations, err := t.Applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing applied migrations: %w", err)
	}
	log.Info().Int("count", len(appliedMigrations)).Msg("Found already applied migrations")

	if err := checkDrift(migrations, appliedMigrations); err != nil {
		if !*allowDrift {
			return 0, err
		}
		log.Warn().Err(err).Msg("Continuing despite drift")
	}

	appliedVersions := make(map[int]bool, len(appliedMigrations))
	for _, am := range appliedMigrations {
		appliedVersions[am.Version] = true
	}

	count := 0
	for _, m := range migrations {
		if appliedVersions[m.Version] {
			log.Debug().Str("migration", m.Filename).Msg("Skip (already applied)")
			continue
		}

		log.Info().Str("migration", m.Filename).Msg("Run")
		if err := t.Apply(ctx, m, *appliedBy); err != nil {
			return count, fmt.Errorf("applying %s: %w", m.Filename, err)
		}
		log.Info().Str("migration", m.Filename).Msg("OK")
		count++
	}
	return count, nil
}

// checkDrift reports applied migrations whose file content has changed since.
func checkDrift(migrations []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	var drifted []string
	for _, am := range applied {
		m, ok := byVersion[am.Version]
		if !ok || am.Checksum == "" || m.Checksum == am.Checksum {
			continue
		}
		drifted = append(drifted, m.Filename)
	}
	if len(drifted) > 0 {
		return fmt.Errorf("applied migrations changed on disk: %s", strings.Join(drifted, ", "))
	}
	return nil
}

// parseMigrationFilename splits a file name of the form 0001_name.sql.
func parseMigrationFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// readMigrations reads all migration files from dir, sorted by version.
// The checksum covers the file before placeholder replacement, so the same
// migration applied to different datasets has the same checksum.
func readMigrations(dir string, replacements map[string]string, log zerolog.Logger) ([]Migration, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try from the repository root when run inside cmd/migrate.
		alt := filepath.Join("..", "..", dir)
		if _, err := os.Stat(alt); err != nil {
			return nil, fmt.Errorf("migrations directory not found: %s", dir)
		}
		dir = alt
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := parseMigrationFilename(file.Name())
		if !ok {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		for placeholder, value := range replacements {
			sql = strings.ReplaceAll(sql, placeholder, value)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
