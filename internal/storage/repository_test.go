package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepository, name string) int64 {
	t.Helper()
	id, err := repo.CreateUser(context.Background(), name, name+"@example.com", "hash")
	require.NoError(t, err)
	return id
}

func addTx(t *testing.T, repo *SQLiteRepository, userID int64, cat core.CategoryID, amount, note string, date core.Date) int64 {
	t.Helper()
	id, err := repo.CreateTransaction(context.Background(), core.Transaction{
		UserID:     userID,
		CategoryID: cat,
		Amount:     decimal.RequireFromString(amount),
		Note:       note,
		Date:       date,
	})
	require.NoError(t, err)
	return id
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	cats, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 4)
	assert.Equal(t, "Others", cats[3].Name)
	assert.Equal(t, core.CategoryOthers, cats[3].ID)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id := newTestUser(t, repo, "alice")

	_, err := repo.CreateUser(ctx, "alice", "other@example.com", "hash")
	assert.ErrorIs(t, err, ErrDuplicateUser)

	u, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())

	byID, err := repo.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = repo.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := newTestUser(t, repo, "alice")

	first := addTx(t, repo, user, 1, "12.50", "Lunch at restaurant", core.NewDate(2024, 3, 1))
	second := addTx(t, repo, user, 2, "7", "Bus ticket", core.NewDate(2024, 3, 5))

	got, err := repo.GetTransaction(ctx, first)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "2024-03-01", got.Date.String())

	list, err := repo.ListTransactions(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID, "newest first")

	_, err = repo.GetTransaction(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.CreateTransaction(ctx, core.Transaction{
		UserID: user, CategoryID: 99, Amount: decimal.NewFromInt(1), Date: core.NewDate(2024, 3, 1),
	})
	assert.ErrorIs(t, err, core.ErrInvalidCategory)

	_, err = repo.CreateTransaction(ctx, core.Transaction{
		UserID: user, CategoryID: 1, Amount: decimal.Zero, Date: core.NewDate(2024, 3, 1),
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestRecentNotes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	alice := newTestUser(t, repo, "alice")
	bob := newTestUser(t, repo, "bob")

	addTx(t, repo, alice, 1, "10", "coffee", core.NewDate(2024, 1, 1))
	addTx(t, repo, alice, 2, "10", "   ", core.NewDate(2024, 1, 2))
	addTx(t, repo, alice, 3, "10", "cinema", core.NewDate(2024, 1, 3))
	addTx(t, repo, alice, 4, "10", "", core.NewDate(2024, 1, 4))
	addTx(t, repo, bob, 2, "10", "taxi", core.NewDate(2024, 1, 5))

	history, err := repo.RecentNotes(ctx, alice, 1000)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "cinema", history[0].Note)
	assert.Equal(t, core.CategoryID(3), history[0].CategoryID)
	assert.Equal(t, "coffee", history[1].Note)

	limited, err := repo.RecentNotes(ctx, alice, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestBudgets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := newTestUser(t, repo, "alice")
	march := core.Month{Year: 2024, Month: 3}

	id, err := repo.UpsertBudget(ctx, core.Budget{UserID: user, CategoryID: 1, Limit: decimal.NewFromInt(100), Month: march})
	require.NoError(t, err)
	again, err := repo.UpsertBudget(ctx, core.Budget{UserID: user, CategoryID: 1, Limit: decimal.NewFromInt(50), Month: march})
	require.NoError(t, err)
	assert.Equal(t, id, again, "upsert keeps the same row")

	_, err = repo.UpsertBudget(ctx, core.Budget{UserID: user, CategoryID: 2, Limit: decimal.Zero, Month: march})
	require.NoError(t, err)

	addTx(t, repo, user, 1, "30", "lunch", core.NewDate(2024, 3, 2))
	addTx(t, repo, user, 1, "16.25", "dinner", core.NewDate(2024, 3, 20))
	addTx(t, repo, user, 1, "99", "other month", core.NewDate(2024, 4, 1))

	statuses, err := repo.BudgetStatuses(ctx, user, march)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	food := statuses[0]
	assert.Equal(t, "Food", food.Category)
	assert.Equal(t, "50.00", food.Limit.StringFixed(2))
	assert.Equal(t, "46.25", food.Spent.StringFixed(2))
	assert.Equal(t, "92.50", food.UsedPercent.StringFixed(2))

	transport := statuses[1]
	assert.True(t, transport.UsedPercent.IsZero(), "zero limit reports zero usage")
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := newTestUser(t, repo, "alice")

	require.NoError(t, repo.SyncCategories(ctx, []core.Category{{ID: 5, Name: "Salary", Type: core.CategoryTypeIncome}}))

	addTx(t, repo, user, 1, "10", "a", core.NewDate(2024, 1, 10))
	addTx(t, repo, user, 2, "25", "b", core.NewDate(2024, 1, 11))
	addTx(t, repo, user, 1, "5.5", "c", core.NewDate(2024, 2, 1))
	addTx(t, repo, user, 5, "1000", "pay", core.NewDate(2024, 2, 27))

	expense, err := repo.MonthlyExpenseTotals(ctx, user)
	require.NoError(t, err)
	require.Len(t, expense, 2)
	assert.Equal(t, "2024-01", expense[0].Month.String())
	assert.Equal(t, "35.00", expense[0].Total.StringFixed(2))
	assert.Equal(t, "5.50", expense[1].Total.StringFixed(2))

	all, err := repo.MonthlyTotals(ctx, user)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1005.50", all[1].Total.StringFixed(2))

	byCategory, err := repo.CategoryTotals(ctx, user)
	require.NoError(t, err)
	require.Len(t, byCategory, 2)
	assert.Equal(t, "Transport", byCategory[0].Category)
	assert.Equal(t, "Food", byCategory[1].Category)
	assert.Equal(t, "15.50", byCategory[1].Total.StringFixed(2))
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := newTestUser(t, repo, "alice")

	a := addTx(t, repo, user, 1, "1", "a", core.NewDate(2024, 1, 1))
	b := addTx(t, repo, user, 1, "2", "b", core.NewDate(2024, 1, 2))

	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, user, pending[0].UserID)

	require.NoError(t, repo.MarkSynced(ctx, a))
	require.NoError(t, repo.MarkSyncError(ctx, b))

	status, err := repo.SyncStatus(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, SyncFailed, status)

	pending, err = repo.GetPendingSyncTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "failed rows are retried")
	assert.Equal(t, b, pending[0].ID)

	assert.ErrorIs(t, repo.MarkSynced(ctx, 4242), ErrNotFound)
	require.NoError(t, repo.Ping(ctx))
}

func TestUnreadableTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := newTestUser(t, repo, "alice")
	tx := addTx(t, repo, user, 1, "3", "coffee", core.NewDate(2024, 1, 1))

	_, err := repo.db.ExecContext(ctx, `UPDATE users SET created_at = 'yesterday' WHERE user_id = ?`, user)
	require.NoError(t, err)
	_, err = repo.GetUser(ctx, user)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parse timestamp "yesterday"`)

	_, err = repo.db.ExecContext(ctx, `UPDATE transactions SET created_at = 'later' WHERE tx_id = ?`, tx)
	require.NoError(t, err)
	pending, err := repo.GetPendingSyncTransactions(ctx, 10)
	require.NoError(t, err, "one bad row must not stall the mirror")
	require.Len(t, pending, 1)
	assert.Equal(t, tx, pending[0].ID)
	assert.True(t, pending[0].CreatedAt.IsZero())
}

func TestSyncCategoriesMovesNamesBetweenIDs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.SyncCategories(ctx, []core.Category{
		{ID: 5, Name: "Food"},
		{ID: 1, Name: "Groceries"},
		{ID: 2, Name: "Entertainment"},
		{ID: 3, Name: "Transport"},
		{ID: 4, Name: "Others"},
	}))

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	names := make(map[core.CategoryID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	assert.Equal(t, map[core.CategoryID]string{
		1: "Groceries", 2: "Entertainment", 3: "Transport", 4: "Others", 5: "Food",
	}, names)

	err = repo.SyncCategories(ctx, []core.Category{{ID: 6, Name: "Others"}})
	require.Error(t, err, "names held by unconfigured rows cannot be reused")
	assert.Contains(t, err.Error(), "no longer configured")
}
