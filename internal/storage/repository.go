package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/classifier"
	"expensetracker/internal/core"
	"expensetracker/internal/log"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateUser = errors.New("username already exists")
)

// Sync states of a transaction row with respect to the spreadsheet mirror.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncFailed  = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

// PendingSyncTransaction is the minimal data needed to enqueue a mirror job.
type PendingSyncTransaction struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser stores a new account and returns its id.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateUser
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}

	slog.InfoContext(ctx, "User created",
		log.FieldComponent, log.ComponentStorage,
		log.FieldUserID, id)
	return id, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.getUser(ctx, `WHERE username = ?`, username)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return r.getUser(ctx, `WHERE user_id = ?`, id)
}

func (r *SQLiteRepository) getUser(ctx context.Context, where string, arg any) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, username, email, password_hash, CAST(created_at AS TEXT) FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if u.CreatedAt, err = parseTimestamp(created); err != nil {
		return core.User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	return u, nil
}

// SyncCategories makes the categories table match the configured category set.
// Existing rows are renamed in place; rows are never deleted because
// transactions reference them. Configured rows first move to placeholder
// names so that names can move between ids within one sync.
func (r *SQLiteRepository) SyncCategories(ctx context.Context, categories []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range categories {
		if _, err := tx.ExecContext(ctx,
			`UPDATE categories SET name = printf('#pending-%d', category_id) WHERE category_id = ?`,
			int(c.ID)); err != nil {
			return fmt.Errorf("release category name %d: %w", c.ID, err)
		}
	}

	for _, c := range categories {
		typ := c.Type
		if typ == "" {
			typ = core.CategoryTypeExpense
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (category_id, name, type) VALUES (?, ?, ?)
			 ON CONFLICT(category_id) DO UPDATE SET name = excluded.name, type = excluded.type`,
			int(c.ID), c.Name, typ)
		if isUniqueViolation(err) {
			return fmt.Errorf("upsert category %d: name %q belongs to a category that is no longer configured: %w", c.ID, c.Name, err)
		}
		if err != nil {
			return fmt.Errorf("upsert category %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit categories: %w", err)
	}
	slog.InfoContext(ctx, "Categories synchronized",
		log.FieldComponent, log.ComponentStorage,
		"count", len(categories))
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT category_id, name, type FROM categories ORDER BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			c  core.Category
			id int
		)
		if err := rows.Scan(&id, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ID = core.CategoryID(id)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateTransaction stores a validated transaction. It is queued for the
// spreadsheet mirror in the pending state.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, amount_cents, note, tx_date) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, int(t.CategoryID), toCents(t.Amount), t.Note, t.Date.String())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return 0, fmt.Errorf("%w: %d", core.ErrInvalidCategory, t.CategoryID)
		}
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		log.FieldComponent, log.ComponentStorage,
		log.FieldTransactionID, id,
		log.FieldUserID, t.UserID,
		log.FieldCategoryID, int(t.CategoryID),
		log.FieldAmount, t.Amount.StringFixed(2))
	return id, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT tx_id, user_id, category_id, amount_cents, note, tx_date FROM transactions WHERE tx_id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns the user's transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tx_id, user_id, category_id, amount_cents, note, tx_date
		 FROM transactions WHERE user_id = ?
		 ORDER BY tx_date DESC, tx_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// RecentNotes implements classifier.HistorySource.
func (r *SQLiteRepository) RecentNotes(ctx context.Context, userID int64, limit int) ([]classifier.TrainingExample, error) {
	if limit <= 0 || limit > classifier.MaxHistoryExamples {
		limit = classifier.MaxHistoryExamples
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT note, category_id FROM transactions
		 WHERE user_id = ? AND TRIM(note) != ''
		 ORDER BY tx_date DESC, tx_id DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent notes: %w", err)
	}
	defer rows.Close()

	var history []classifier.TrainingExample
	for rows.Next() {
		var (
			ex classifier.TrainingExample
			id int
		)
		if err := rows.Scan(&ex.Note, &id); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		ex.CategoryID = core.CategoryID(id)
		history = append(history, ex)
	}
	return history, rows.Err()
}

// UpsertBudget creates or replaces the limit for (user, category, month).
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO budgets (user_id, category_id, limit_cents, month_year) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, category_id, month_year) DO UPDATE SET limit_cents = excluded.limit_cents
		 RETURNING budget_id`,
		b.UserID, int(b.CategoryID), toCents(b.Limit), b.Month.String()).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return 0, fmt.Errorf("%w: %d", core.ErrInvalidCategory, b.CategoryID)
		}
		return 0, fmt.Errorf("upsert budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget upserted",
		log.FieldComponent, log.ComponentStorage,
		log.FieldUserID, b.UserID,
		log.FieldCategoryID, int(b.CategoryID),
		log.FieldMonth, b.Month.String())
	return id, nil
}

// BudgetStatuses reports spending against every budget the user set for month.
func (r *SQLiteRepository) BudgetStatuses(ctx context.Context, userID int64, month core.Month) ([]core.BudgetStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.category_id, COALESCE(c.name, 'Unknown'), b.limit_cents, COALESCE(SUM(t.amount_cents), 0)
		 FROM budgets b
		 LEFT JOIN transactions t
		   ON t.category_id = b.category_id
		  AND substr(t.tx_date, 1, 7) = b.month_year
		  AND t.user_id = b.user_id
		 LEFT JOIN categories c ON c.category_id = b.category_id
		 WHERE b.user_id = ? AND b.month_year = ?
		 GROUP BY b.category_id, c.name, b.limit_cents
		 ORDER BY b.category_id`, userID, month.String())
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}
	defer rows.Close()

	var statuses []core.BudgetStatus
	for rows.Next() {
		var (
			id                int
			name              string
			limitCents, spent int64
		)
		if err := rows.Scan(&id, &name, &limitCents, &spent); err != nil {
			return nil, fmt.Errorf("scan budget status: %w", err)
		}
		statuses = append(statuses, core.NewBudgetStatus(core.CategoryID(id), name, fromCents(limitCents), fromCents(spent)))
	}
	return statuses, rows.Err()
}

// MonthlyExpenseTotals sums expense-type transactions per month, oldest first.
func (r *SQLiteRepository) MonthlyExpenseTotals(ctx context.Context, userID int64) ([]core.MonthlyTotal, error) {
	return r.monthlyTotals(ctx,
		`SELECT substr(t.tx_date, 1, 7) AS month, SUM(t.amount_cents)
		 FROM transactions t
		 JOIN categories c ON c.category_id = t.category_id
		 WHERE c.type = 'expense' AND t.user_id = ?
		 GROUP BY month ORDER BY month`, userID)
}

// MonthlyTotals sums every transaction per month, oldest first.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, userID int64) ([]core.MonthlyTotal, error) {
	return r.monthlyTotals(ctx,
		`SELECT substr(tx_date, 1, 7) AS month, SUM(amount_cents)
		 FROM transactions
		 WHERE user_id = ?
		 GROUP BY month ORDER BY month`, userID)
}

func (r *SQLiteRepository) monthlyTotals(ctx context.Context, query string, userID int64) ([]core.MonthlyTotal, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var totals []core.MonthlyTotal
	for rows.Next() {
		var (
			raw   string
			cents int64
		)
		if err := rows.Scan(&raw, &cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		month, err := core.ParseMonth(raw)
		if err != nil {
			return nil, err
		}
		totals = append(totals, core.MonthlyTotal{Month: month, Total: fromCents(cents)})
	}
	return totals, rows.Err()
}

// CategoryTotals sums expense-type transactions per category, largest first.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, SUM(t.amount_cents) AS total
		 FROM transactions t
		 JOIN categories c ON c.category_id = t.category_id
		 WHERE c.type = 'expense' AND t.user_id = ?
		 GROUP BY c.name
		 ORDER BY total DESC, c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var (
			ct    core.CategoryTotal
			cents int64
		)
		if err := rows.Scan(&ct.Category, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Total = fromCents(cents)
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

// GetPendingSyncTransactions returns transactions not yet mirrored, oldest first.
// Rows in the error state are retried as well.
func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tx_id, user_id, CAST(created_at AS TEXT) FROM transactions
		 WHERE sync_status != ?
		 ORDER BY created_at, tx_id
		 LIMIT ?`, SyncDone, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncTransaction
	for rows.Next() {
		var (
			p       PendingSyncTransaction
			created string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &created); err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		ts, err := parseTimestamp(created)
		if err != nil {
			slog.WarnContext(ctx, "Pending transaction has an unreadable timestamp",
				log.FieldComponent, log.ComponentStorage,
				log.FieldTransactionID, p.ID,
				log.FieldError, err)
		}
		p.CreatedAt = ts
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced marks a transaction as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncDone); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced",
		log.FieldComponent, log.ComponentStorage,
		log.FieldTransactionID, id)
	return nil
}

// MarkSyncError records a failed mirror attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncFailed); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error",
		log.FieldComponent, log.ComponentStorage,
		log.FieldTransactionID, id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET sync_status = ?, synced_at = CASE WHEN ? = 'synced' THEN CURRENT_TIMESTAMP ELSE synced_at END
		 WHERE tx_id = ?`, status, status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SyncStatus returns the mirror state of one transaction.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM transactions WHERE tx_id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sync status: %w", err)
	}
	return status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		categoryID int
		cents      int64
		date       string
	)
	if err := row.Scan(&t.ID, &t.UserID, &categoryID, &cents, &t.Note, &date); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID = core.CategoryID(categoryID)
	t.Amount = fromCents(cents)
	t.Date = d
	return t, nil
}

func toCents(d decimal.Decimal) int64 {
	return core.RoundCents(d).Shift(2).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// parseTimestamp reads SQLite CURRENT_TIMESTAMP text, accepting RFC 3339 too.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
