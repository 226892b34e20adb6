// Package sheets defines the optional spreadsheet mirror that receives a copy
// of every stored transaction.
package sheets

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

// Header is the column layout of the mirror sheet.
var Header = []string{"ID", "User", "Date", "Category", "Amount", "Note"}

// MirrorRow is one transaction as written to the spreadsheet.
type MirrorRow struct {
	TransactionID int64
	UserID        int64
	Date          string
	Category      string
	Amount        decimal.Decimal
	Note          string
}

func NewMirrorRow(t core.Transaction, category string) MirrorRow {
	return MirrorRow{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Date:          t.Date.String(),
		Category:      category,
		Amount:        t.Amount,
		Note:          t.Note,
	}
}

// Values renders the row in Header order.
func (r MirrorRow) Values() []any {
	return []any{
		strconv.FormatInt(r.TransactionID, 10),
		strconv.FormatInt(r.UserID, 10),
		r.Date,
		r.Category,
		r.Amount.StringFixed(2),
		r.Note,
	}
}

// Ports for outbound adapters.
type (
	TransactionMirror interface {
		AppendTransaction(ctx context.Context, row MirrorRow) (rowRef string, err error)
	}

	// MirrorIndex lets the worker skip rows already present after a redelivery.
	MirrorIndex interface {
		HasTransaction(ctx context.Context, id int64) (bool, error)
	}
)
