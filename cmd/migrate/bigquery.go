package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

type bigqueryTarget struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

func newBigQueryTarget(ctx context.Context, projectID, datasetID string) (*bigqueryTarget, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating BigQuery client: %w", err)
	}
	return &bigqueryTarget{client: client, projectID: projectID, datasetID: datasetID}, nil
}

func (b *bigqueryTarget) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", b.projectID, b.datasetID)
}

func (b *bigqueryTarget) EnsureSchemaMigrations(ctx context.Context) error {
	return b.runQuery(ctx, b.client.Query(`
		CREATE TABLE IF NOT EXISTS `+b.table()+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)`))
}

func (b *bigqueryTarget) Applied(ctx context.Context) ([]AppliedMigration, error) {
	it, err := b.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + b.table() + `
		ORDER BY version ASC`).Read(ctx)
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

// Apply runs the migration, then records it. BigQuery DDL is not
// transactional, so a failure between the two leaves the migration applied
// but unrecorded; migrations use IF NOT EXISTS to stay re-runnable.
func (b *bigqueryTarget) Apply(ctx context.Context, m Migration, appliedBy string) error {
	if err := b.runQuery(ctx, b.client.Query(m.SQL)); err != nil {
		return fmt.Errorf("executing: %w", err)
	}

	q := b.client.Query(`
		INSERT INTO ` + b.table() + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	if err := b.runQuery(ctx, q); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return nil
}

func (b *bigqueryTarget) Close() error {
	return b.client.Close()
}

func (b *bigqueryTarget) runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
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
