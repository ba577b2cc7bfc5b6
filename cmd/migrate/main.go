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

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/ledgerscan/internal/logger"
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
	Version    int
	Name       string
	AppliedAt  time.Time
	Checksum   string
	AppliedBy  string
}

var (
	projectID       = flag.String("project", "", "GCP project ID (required)")
	datasetID       = flag.String("dataset", "ledgerscan", "BigQuery dataset ID")
	appliedBy       = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir   = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
)

func main() {
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	// Validate required flags
	if *projectID == "" {
		log.Fatal().Msg("-project flag is required. Please specify your GCP project ID.")
	}

	// Create BigQuery client
	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	// Ensure schema_migrations table exists
	if err := ensureSchemaMigrationsTable(ctx, client); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	// Read migration files
	migrations, err := readMigrations(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	// Get applied migrations
	appliedMigrations, err := getAppliedMigrations(ctx, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}

	log.Info().Int("count", len(appliedMigrations)).Msg("Found already applied migrations")

	// Build map of applied versions
	appliedVersions := make(map[int]bool)
	for _, am := range appliedMigrations {
		appliedVersions[am.Version] = true
	}

	// Apply pending migrations
	appliedCount := 0
	for _, migration := range migrations {
		id := fmt.Sprintf("%04d_%s", migration.Version, migration.Name)
		if appliedVersions[migration.Version] {
			log.Info().Str("migration", id).Msg("Already applied, skipping")
			continue
		}

		log.Info().Str("migration", id).Msg("Applying")

		// Execute migration
		if err := executeMigration(ctx, client, migration); err != nil {
			log.Fatal().Err(err).Str("migration", id).Msg("Failed to execute migration")
		}

		// Record migration in schema_migrations
		if err := recordMigration(ctx, client, migration); err != nil {
			log.Fatal().Err(err).Str("migration", id).Msg("Failed to record migration")
		}

		log.Info().Str("migration", id).Msg("Applied")
		appliedCount++
	}

	if appliedCount == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", appliedCount).Msg("Migrations applied")
	}
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, *projectID, *datasetID)

	query := client.Query(sql)
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

// readMigrations reads all migration files from the migrations directory
func readMigrations(log zerolog.Logger) ([]Migration, error) {
	// Check if directory exists relative to current directory
	dir := *migrationsDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try from parent directory (in case we're in cmd/migrate)
		dir = "../../" + *migrationsDir
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("migrations directory not found: %s", *migrationsDir)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	// Pattern to match migration files: 0001_name.sql
	pattern := regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := pattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid version")
			continue
		}

		name := matches[2]

		// Read SQL content
		filePath := filepath.Join(dir, file.Name())
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		
		// Replace placeholders with actual project and dataset
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", *projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", *datasetID)

		// Calculate checksum from original content (before replacements)
		// Note: This means changing placeholders won't be detected as a change.
		// This is intentional: we want to track the logical migration structure,
		// not the specific project/dataset it's applied to.
		checksum := fmt.Sprintf("%x", sha256.Sum256(content))

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      sql,
			Checksum: checksum,
		})
	}

	// Sort by version
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, *projectID, *datasetID)

	query := client.Query(sql)
	it, err := query.Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		am := AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
		}

		if row.Checksum.Valid {
			am.Checksum = row.Checksum.StringVal
		}

		if row.AppliedBy.Valid {
			am.AppliedBy = row.AppliedBy.StringVal
		}

		applied = append(applied, am)
	}

	return applied, nil
}

// executeMigration executes a single migration SQL
func executeMigration(ctx context.Context, client *bigquery.Client, migration Migration) error {
	query := client.Query(migration.SQL)
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, migration Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, *projectID, *datasetID)

	query := client.Query(sql)
	query.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: *appliedBy},
	}

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
