// Package sheets mirrors ledger events into a spreadsheet.
package sheets

import (
	"context"
	"time"
)

// Header is the first row of the mirror sheet.
var Header = []any{"Occurred At", "Event", "Transaction ID", "Date", "Type", "Category", "Amount", "Description", "Vendor"}

// Row is one mirrored ledger event. Deletions carry only the id.
type Row struct {
	OccurredAt    time.Time
	Event         string
	TransactionID int64
	Date          string
	Type          string
	Category      string
	Amount        string
	Description   string
	Vendor        string
}

// Values returns the row cells in Header order.
func (r Row) Values() []any {
	return []any{
		r.OccurredAt.UTC().Format(time.RFC3339),
		r.Event,
		r.TransactionID,
		r.Date,
		r.Type,
		r.Category,
		r.Amount,
		r.Description,
		r.Vendor,
	}
}

// LedgerMirror is the outbound port for the spreadsheet mirror.
type LedgerMirror interface {
	AppendRow(ctx context.Context, row Row) (rowRef string, err error)
}
