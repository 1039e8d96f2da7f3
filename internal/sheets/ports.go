// Package sheets defines the spreadsheet export port and its row format.
package sheets

import (
	"context"
	"time"

	"taschengeld/internal/core"
)

// Header is the first row of the export sheet.
var Header = []any{"Datum", "Kind", "Betrag", "Notiz", "Kontostand", "Buchung"}

// LedgerRow is one exported transaction together with the balance right
// after it was booked.
type LedgerRow struct {
	TransactionID int64
	At            time.Time
	Child         string
	Amount        core.Money
	Note          string
	BalanceAfter  core.Money
}

// Values renders the row in sheet column order. Amounts are plain numbers so
// the sheet can sum them.
func (r LedgerRow) Values(loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	return []any{
		r.At.In(loc).Format("2006-01-02 15:04"),
		r.Child,
		r.Amount.Euros(),
		r.Note,
		r.BalanceAfter.Euros(),
		r.TransactionID,
	}
}

// LedgerWriter appends exported rows to a spreadsheet.
type LedgerWriter interface {
	AppendRow(ctx context.Context, row LedgerRow) (rowRef string, err error)
}
