// Package export writes a user's transactions as CSV.
package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"expensetracker/internal/core"
)

// TransactionRow is one CSV line. Column order follows field order.
type TransactionRow struct {
	ID         int64  `csv:"tx_id"`
	Date       string `csv:"tx_date"`
	CategoryID int    `csv:"category_id"`
	Category   string `csv:"category"`
	Amount     string `csv:"amount"`
	Note       string `csv:"note"`
}

// CategoryNamer resolves category names; unknown ids yield an empty name.
type CategoryNamer func(core.CategoryID) string

func Rows(txs []core.Transaction, name CategoryNamer) []TransactionRow {
	rows := make([]TransactionRow, 0, len(txs))
	for _, t := range txs {
		row := TransactionRow{
			ID:         t.ID,
			Date:       t.Date.String(),
			CategoryID: int(t.CategoryID),
			Amount:     t.Amount.StringFixed(2),
			Note:       t.Note,
		}
		if name != nil {
			row.Category = name(t.CategoryID)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteTransactions writes a header plus one row per transaction.
func WriteTransactions(w io.Writer, txs []core.Transaction, name CategoryNamer) error {
	rows := Rows(txs, name)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
