package export

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/jobs"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransaction() *domain.Transaction {
	notes := "Lunch"
	return &domain.Transaction{
		ID:              "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a",
		UserID:          "user-1",
		Amount:          decimal.RequireFromString("12.50"),
		Type:            domain.TransactionTypeExpense,
		Date:            civil.Date{Year: 2024, Month: time.March, Day: 15},
		CategoryID:      "cat-1",
		PaymentSourceID: "src-1",
		Notes:           &notes,
	}
}

func upsertJob() *jobs.ExportTransactionJob {
	tx := sampleTransaction()
	return &jobs.ExportTransactionJob{
		JobID:         "job-1",
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Action:        jobs.ExportUpsert,
		Transaction:   tx,
	}
}

type fakeNotion struct {
	existing string
	created  []notionapi.Properties
	updated  map[string]notionapi.Properties
	archived []string
	queries  []*notionapi.DatabaseQueryRequest
	err      error
}

func (f *fakeNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	f.created = append(f.created, properties)
	return &notionapi.Page{ID: "page-new"}, f.err
}

func (f *fakeNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if f.updated == nil {
		f.updated = map[string]notionapi.Properties{}
	}
	f.updated[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, f.err
}

func (f *fakeNotion) ArchivePage(ctx context.Context, pageID string) error {
	f.archived = append(f.archived, pageID)
	return f.err
}

func (f *fakeNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.queries = append(f.queries, req)
	resp := &notionapi.DatabaseQueryResponse{}
	if f.existing != "" {
		resp.Results = []notionapi.Page{{ID: notionapi.ObjectID(f.existing)}}
	}
	return resp, nil
}

func TestNotionSink_CreatesNewPage(t *testing.T) {
	client := &fakeNotion{}
	sink := NewNotionSink(client, "db-1")

	require.NoError(t, sink.Export(context.Background(), upsertJob()))

	require.Len(t, client.created, 1)
	props := client.created[0]
	assert.Equal(t, notionapi.NumberProperty{Number: 12.5}, props[propAmount])
	assert.Equal(t, notionapi.SelectProperty{Select: notionapi.Option{Name: "expense"}}, props[propType])
	title := props[propTransactionID].(notionapi.TitleProperty)
	assert.Equal(t, "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a", title.Title[0].Text.Content)
	assert.Contains(t, props, propNotes)
	assert.NotContains(t, props, propReceipt)

	require.Len(t, client.queries, 1)
	assert.Equal(t, 1, client.queries[0].PageSize)
}

func TestNotionSink_UpdatesExistingPage(t *testing.T) {
	client := &fakeNotion{existing: "page-7"}
	sink := NewNotionSink(client, "db-1")

	require.NoError(t, sink.Export(context.Background(), upsertJob()))

	assert.Empty(t, client.created)
	assert.Contains(t, client.updated, "page-7")
}

func TestNotionSink_Delete(t *testing.T) {
	job := &jobs.ExportTransactionJob{JobID: "job-2", TransactionID: "tx-1", Action: jobs.ExportDelete}

	t.Run("archives existing page", func(t *testing.T) {
		client := &fakeNotion{existing: "page-7"}
		require.NoError(t, NewNotionSink(client, "db-1").Export(context.Background(), job))
		assert.Equal(t, []string{"page-7"}, client.archived)
	})

	t.Run("missing page is a no-op", func(t *testing.T) {
		client := &fakeNotion{}
		require.NoError(t, NewNotionSink(client, "db-1").Export(context.Background(), job))
		assert.Empty(t, client.archived)
	})
}

type fakeInserter struct {
	rows []interface{}
	err  error
}

func (f *fakeInserter) Put(ctx context.Context, src interface{}) error {
	f.rows = append(f.rows, src)
	return f.err
}

func TestBigQuerySink_Export(t *testing.T) {
	ins := &fakeInserter{}
	changedAt := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	sink := &BigQuerySink{inserter: ins, now: func() time.Time { return changedAt }}

	require.NoError(t, sink.Export(context.Background(), upsertJob()))

	require.Len(t, ins.rows, 1)
	saver := ins.rows[0].(*bigquery.StructSaver)
	assert.Equal(t, "job-1", saver.InsertID)

	row := saver.Struct.(*TransactionChangeRow)
	assert.Equal(t, "upsert", row.Action)
	assert.Equal(t, 0, row.Amount.Cmp(big.NewRat(25, 2)))
	assert.Equal(t, bigquery.NullDate{Date: civil.Date{Year: 2024, Month: time.March, Day: 15}, Valid: true}, row.TransactionDate)
	assert.Equal(t, "Lunch", row.Notes.StringVal)
	assert.Equal(t, changedAt, row.ChangedAt)
}

func TestChangeRowFromJob_Delete(t *testing.T) {
	row := ChangeRowFromJob(&jobs.ExportTransactionJob{JobID: "j", TransactionID: "tx", UserID: "u", Action: jobs.ExportDelete}, time.Now())

	assert.Equal(t, "delete", row.Action)
	assert.Nil(t, row.Amount)
	assert.False(t, row.TransactionDate.Valid)
	assert.False(t, row.Type.Valid)
}

type sinkFunc struct {
	name string
	fn   func(job *jobs.ExportTransactionJob) error
}

func (s sinkFunc) Name() string { return s.name }

func (s sinkFunc) Export(ctx context.Context, job *jobs.ExportTransactionJob) error { return s.fn(job) }

func TestDispatcher_TriesEverySink(t *testing.T) {
	var reached []string
	failing := sinkFunc{"notion", func(*jobs.ExportTransactionJob) error {
		reached = append(reached, "notion")
		return errors.New("notion down")
	}}
	ok := sinkFunc{"bigquery", func(*jobs.ExportTransactionJob) error {
		reached = append(reached, "bigquery")
		return nil
	}}

	d := NewDispatcher(zerolog.Nop(), failing, ok)
	err := d.Handle(context.Background(), upsertJob())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion")
	assert.Equal(t, []string{"notion", "bigquery"}, reached)
}

func TestDispatcher_RejectsUpsertWithoutTransaction(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	assert.False(t, d.Enabled())

	err := d.Handle(context.Background(), &jobs.ExportTransactionJob{JobID: "j", Action: jobs.ExportUpsert})
	assert.Error(t, err)
}
