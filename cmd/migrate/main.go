package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-ingest/internal/config"
	infra "github.com/dvloznov/finance-ingest/internal/infra/bigquery"
	"github.com/dvloznov/finance-ingest/internal/infra/postgres"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var (
	projectID    = flag.String("project", "", "GCP project ID (defaults to FININGEST_GCP_PROJECT)")
	datasetID    = flag.String("dataset", "", "BigQuery dataset ID (defaults to FININGEST_BQ_DATASET)")
	appliedBy    = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	skipBigQuery = flag.Bool("skip-bigquery", false, "Do not migrate the BigQuery dataset")
	skipPostgres = flag.Bool("skip-postgres", false, "Do not migrate the artifact database")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	if *projectID != "" {
		cfg.GCP.ProjectID = *projectID
	}
	if *datasetID != "" {
		cfg.GCP.DatasetID = *datasetID
	}

	if !*skipPostgres {
		if err := migratePostgres(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("artifact database migration failed")
		}
	}
	if !*skipBigQuery {
		if err := migrateBigQuery(ctx, log, cfg.GCP); err != nil {
			log.Fatal().Err(err).Msg("BigQuery migration failed")
		}
	}
}

func migratePostgres(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.New(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().Int("statements", len(postgres.Schema)).Msg("artifact schema up to date")
	return nil
}

func migrateBigQuery(ctx context.Context, log zerolog.Logger, gcp config.GCPConfig) error {
	if gcp.ProjectID == "" {
		return fmt.Errorf("a GCP project is required: pass -project or set FININGEST_GCP_PROJECT")
	}

	client, err := bigquery.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return fmt.Errorf("creating BigQuery client: %w", err)
	}
	defer client.Close()

	log.Info().Str("project", gcp.ProjectID).Str("dataset", gcp.DatasetID).Msg("connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client, gcp); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, client, gcp)
	if err != nil {
		return err
	}
	log.Info().Int("known", len(infra.Migrations)).Int("applied", len(applied)).Msg("loaded migrations")

	todo, drifted := pending(infra.Migrations, applied)
	for _, d := range drifted {
		log.Warn().Str("migration", d).Msg("applied migration changed since it ran")
	}

	for _, m := range todo {
		label := fmt.Sprintf("%04d_%s", m.Version, m.Name)
		log.Info().Str("migration", label).Msg("applying")

		if err := runQuery(ctx, client.Query(m.Render(gcp.ProjectID, gcp.DatasetID))); err != nil {
			return fmt.Errorf("executing migration %s: %w", label, err)
		}
		if err := recordMigration(ctx, client, gcp, m); err != nil {
			return fmt.Errorf("recording migration %s: %w", label, err)
		}
	}

	if len(todo) == 0 {
		log.Info().Msg("no new migrations to apply, dataset is up to date")
	} else {
		log.Info().Int("count", len(todo)).Msg("applied migrations")
	}
	return nil
}

// pending returns the migrations not yet applied, in order, and the labels
// of applied migrations whose checksum no longer matches.
func pending(all []infra.Migration, applied []AppliedMigration) ([]infra.Migration, []string) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[am.Version] = am
	}

	var todo []infra.Migration
	var drifted []string
	for _, m := range all {
		am, ok := done[m.Version]
		if !ok {
			todo = append(todo, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum() {
			drifted = append(drifted, fmt.Sprintf("%04d_%s", m.Version, m.Name))
		}
	}
	return todo, drifted
}

func table(gcp config.GCPConfig, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", gcp.ProjectID, gcp.DatasetID, name)
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client, gcp config.GCPConfig) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, table(gcp, "schema_migrations"))
	return runQuery(ctx, client.Query(sql))
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client, gcp config.GCPConfig) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, table(gcp, "schema_migrations"))

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, gcp config.GCPConfig, m infra.Migration) error {
	query := client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, table(gcp, "schema_migrations")))
	query.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum()},
		{Name: "applied_by", Value: *appliedBy},
	}
	return runQuery(ctx, query)
}

func runQuery(ctx context.Context, query *bigquery.Query) error {
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
