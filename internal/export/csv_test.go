package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
)

func names(id core.CategoryID) string {
	return map[core.CategoryID]string{1: "Food", 2: "Transport"}[id]
}

func TestWriteTransactions(t *testing.T) {
	txs := []core.Transaction{
		{ID: 2, UserID: 1, CategoryID: 2, Amount: decimal.RequireFromString("7"), Note: "Bus, downtown", Date: core.NewDate(2024, 3, 5)},
		{ID: 1, UserID: 1, CategoryID: 1, Amount: decimal.RequireFromString("12.5"), Note: "Lunch", Date: core.NewDate(2024, 3, 1)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, txs, names))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tx_id,tx_date,category_id,category,amount,note", lines[0])
	assert.Equal(t, `2,2024-03-05,2,Transport,7.00,"Bus, downtown"`, lines[1])
	assert.Equal(t, "1,2024-03-01,1,Food,12.50,Lunch", lines[2])

	var back []TransactionRow
	require.NoError(t, gocsv.UnmarshalString(buf.String(), &back))
	assert.Equal(t, Rows(txs, names), back)
}

func TestRowsWithoutNamer(t *testing.T) {
	rows := Rows([]core.Transaction{{ID: 9, CategoryID: 4, Amount: decimal.NewFromInt(3), Date: core.NewDate(2024, 1, 1)}}, nil)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Category)
	assert.Equal(t, "3.00", rows[0].Amount)
}
