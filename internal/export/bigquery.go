package export

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/finlog/finlog/internal/jobs"
)

const changesTable = "transaction_changes"

// TransactionChangeRow is one append-only row in the changes table. The
// latest row per transaction_id is the current state.
type TransactionChangeRow struct {
	ChangeID        string              `bigquery:"change_id"`
	TransactionID   string              `bigquery:"transaction_id"`
	UserID          string              `bigquery:"user_id"`
	Action          string              `bigquery:"action"`
	Amount          *big.Rat            `bigquery:"amount"` // NULLABLE NUMERIC
	Type            bigquery.NullString `bigquery:"type"`
	TransactionDate bigquery.NullDate   `bigquery:"transaction_date"`
	CategoryID      bigquery.NullString `bigquery:"category_id"`
	PaymentSourceID bigquery.NullString `bigquery:"payment_source_id"`
	Notes           bigquery.NullString `bigquery:"notes"`
	ChangedAt       time.Time           `bigquery:"changed_at"`
}

type rowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// BigQuerySink appends every change to a BigQuery table for analytics.
type BigQuerySink struct {
	client   *bigquery.Client
	inserter rowInserter
	now      func() time.Time
}

// NewBigQuerySink connects to projectID and writes to dataset.transaction_changes.
func NewBigQuerySink(ctx context.Context, projectID, datasetID string) (*BigQuerySink, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuerySink: bigquery client: %w", err)
	}
	table := client.DatasetInProject(projectID, datasetID).Table(changesTable)
	return &BigQuerySink{client: client, inserter: table.Inserter(), now: time.Now}, nil
}

func (s *BigQuerySink) Name() string { return "bigquery" }

// Export appends the change. The job id is used as the insert id, so a
// retried job does not produce a duplicate row.
func (s *BigQuerySink) Export(ctx context.Context, job *jobs.ExportTransactionJob) error {
	row := ChangeRowFromJob(job, s.now())
	saver := &bigquery.StructSaver{Struct: row, InsertID: job.JobID}
	if err := s.inserter.Put(ctx, saver); err != nil {
		return fmt.Errorf("BigQuerySink: inserting row: %w", err)
	}
	return nil
}

// Close releases the BigQuery client.
func (s *BigQuerySink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// ChangeRowFromJob builds the row for job.
func ChangeRowFromJob(job *jobs.ExportTransactionJob, changedAt time.Time) *TransactionChangeRow {
	row := &TransactionChangeRow{
		ChangeID:      job.JobID,
		TransactionID: job.TransactionID,
		UserID:        job.UserID,
		Action:        string(job.Action),
		ChangedAt:     changedAt.UTC(),
	}

	tx := job.Transaction
	if tx == nil {
		return row
	}
	row.Amount = tx.Amount.Rat()
	row.Type = bigquery.NullString{StringVal: string(tx.Type), Valid: true}
	row.TransactionDate = bigquery.NullDate{Date: tx.Date, Valid: true}
	row.CategoryID = bigquery.NullString{StringVal: tx.CategoryID, Valid: true}
	row.PaymentSourceID = bigquery.NullString{StringVal: tx.PaymentSourceID, Valid: true}
	if tx.Notes != nil {
		row.Notes = bigquery.NullString{StringVal: *tx.Notes, Valid: true}
	}
	return row
}
