package export

import (
	"context"
	"fmt"
	"time"

	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/jobs"
	"github.com/jomei/notionapi"
)

// Notion database property names.
const (
	propTransactionID = "Transaction ID"
	propUserID        = "User ID"
	propAmount        = "Amount"
	propType          = "Type"
	propDate          = "Date"
	propCategory      = "Category"
	propPaymentSource = "Payment Source"
	propNotes         = "Notes"
	propReceipt       = "Receipt"
)

// NotionSink keeps one page per transaction in a Notion database, keyed by
// the transaction id in the title column.
type NotionSink struct {
	client     NotionService
	databaseID string
}

// NewNotionSink creates a sink writing to databaseID.
func NewNotionSink(client NotionService, databaseID string) *NotionSink {
	return &NotionSink{client: client, databaseID: databaseID}
}

func (s *NotionSink) Name() string { return "notion" }

// Export creates or updates the transaction's page, or archives it on delete.
func (s *NotionSink) Export(ctx context.Context, job *jobs.ExportTransactionJob) error {
	pageID, err := s.findPage(ctx, job.TransactionID)
	if err != nil {
		return err
	}

	switch job.Action {
	case jobs.ExportDelete:
		if pageID == "" {
			return nil
		}
		return s.client.ArchivePage(ctx, pageID)
	case jobs.ExportUpsert:
		props := TransactionToNotionProperties(job.Transaction)
		if pageID == "" {
			_, err = s.client.CreatePage(ctx, s.databaseID, props)
		} else {
			_, err = s.client.UpdatePage(ctx, pageID, props)
		}
		return err
	default:
		return fmt.Errorf("NotionSink: unknown action %q", job.Action)
	}
}

func (s *NotionSink) findPage(ctx context.Context, transactionID string) (string, error) {
	resp, err := s.client.QueryDatabase(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: propTransactionID,
			RichText: &notionapi.TextFilterCondition{Equals: transactionID},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", fmt.Errorf("findPage: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

// TransactionToNotionProperties maps a transaction onto the database columns.
func TransactionToNotionProperties(tx *domain.Transaction) notionapi.Properties {
	amount, _ := tx.Amount.Float64()
	date := notionapi.Date(time.Date(tx.Date.Year, tx.Date.Month, tx.Date.Day, 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		propTransactionID: notionapi.TitleProperty{Title: richText(tx.ID)},
		propUserID:        notionapi.RichTextProperty{RichText: richText(tx.UserID)},
		propAmount:        notionapi.NumberProperty{Number: amount},
		propType:          notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Type)}},
		propDate:          notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		propCategory:      notionapi.RichTextProperty{RichText: richText(tx.CategoryID)},
		propPaymentSource: notionapi.RichTextProperty{RichText: richText(tx.PaymentSourceID)},
	}
	if tx.Notes != nil {
		props[propNotes] = notionapi.RichTextProperty{RichText: richText(*tx.Notes)}
	}
	if tx.ImageURL != nil {
		props[propReceipt] = notionapi.URLProperty{URL: *tx.ImageURL}
	}
	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}
