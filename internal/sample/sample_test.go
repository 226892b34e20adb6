package sample

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
)

var now = time.Date(2024, time.December, 20, 15, 0, 0, 0, time.UTC)

func TestTransactions(t *testing.T) {
	txs := NewGenerator(42, now).Transactions(7, 200)
	require.Len(t, txs, 200)

	earliest := now.AddDate(0, 0, -HistoryDays).Truncate(24 * time.Hour)
	for _, tx := range txs {
		require.NoError(t, tx.Validate())
		assert.Equal(t, int64(7), tx.UserID)

		p, ok := profiles[tx.CategoryID]
		require.True(t, ok, "unknown category %d", tx.CategoryID)
		assert.Contains(t, p.notes, tx.Note)
		assert.True(t, tx.Amount.GreaterThanOrEqual(decimal.NewFromFloat(p.min)), tx.Amount.String())
		assert.True(t, tx.Amount.LessThanOrEqual(decimal.NewFromFloat(p.max)), tx.Amount.String())
		assert.Equal(t, tx.Amount.String(), tx.Amount.Round(2).String())

		assert.False(t, tx.Date.Before(earliest))
		assert.False(t, tx.Date.After(now))
	}
}

func TestTransactionsAreReproducible(t *testing.T) {
	a := NewGenerator(1, now).Transactions(1, 20)
	b := NewGenerator(1, now).Transactions(1, 20)
	c := NewGenerator(2, now).Transactions(1, 20)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestBudgets(t *testing.T) {
	budgets := NewGenerator(1, now).Budgets(3)
	require.Len(t, budgets, 8)

	assert.Equal(t, "2024-12", budgets[0].Month.String())
	assert.Equal(t, "2025-01", budgets[4].Month.String(), "rolls over the year")

	limits := map[core.CategoryID]string{}
	for _, b := range budgets[:4] {
		require.NoError(t, b.Validate())
		limits[b.CategoryID] = b.Limit.String()
	}
	assert.Equal(t, map[core.CategoryID]string{1: "500", 2: "300", 3: "200", 4: "400"}, limits)
}
