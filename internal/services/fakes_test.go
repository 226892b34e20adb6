package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	txs      []core.Transaction
	users    map[int64]core.User
	byName   map[string]int64
	budgets  map[string]core.Budget
	statuses []core.BudgetStatus
	monthly  []core.MonthlyTotal
	all      []core.MonthlyTotal
	cats     []core.CategoryTotal
	calls    map[string]int
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[int64]core.User{},
		byName:  map[string]int64{},
		budgets: map[string]core.Budget{},
		calls:   map[string]int{},
	}
}

func (f *fakeStore) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.failWith
}

func (f *fakeStore) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if err := f.hit("CreateTransaction"); err != nil {
		return 0, err
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	f.txs = append(f.txs, t)
	return t.ID, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, userID int64) ([]core.Transaction, error) {
	if err := f.hit("ListTransactions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Transaction
	for i := len(f.txs) - 1; i >= 0; i-- {
		if f.txs[i].UserID == userID {
			out = append(out, f.txs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) CreateUser(_ context.Context, username, email, hash string) (int64, error) {
	if err := f.hit("CreateUser"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[username]; ok {
		return 0, storage.ErrDuplicateUser
	}
	f.nextID++
	f.users[f.nextID] = core.User{ID: f.nextID, Username: username, Email: email, PasswordHash: hash}
	f.byName[username] = f.nextID
	return f.nextID, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byName[username]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return f.users[id], nil
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) UpsertBudget(_ context.Context, b core.Budget) (int64, error) {
	if err := f.hit("UpsertBudget"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.budgets[fmt.Sprintf("%s:%d", b.Month, b.CategoryID)] = b
	return int64(len(f.budgets)), nil
}

func (f *fakeStore) BudgetStatuses(context.Context, int64, core.Month) ([]core.BudgetStatus, error) {
	if err := f.hit("BudgetStatuses"); err != nil {
		return nil, err
	}
	return f.statuses, nil
}

func (f *fakeStore) MonthlyExpenseTotals(context.Context, int64) ([]core.MonthlyTotal, error) {
	if err := f.hit("MonthlyExpenseTotals"); err != nil {
		return nil, err
	}
	return f.monthly, nil
}

func (f *fakeStore) MonthlyTotals(context.Context, int64) ([]core.MonthlyTotal, error) {
	if err := f.hit("MonthlyTotals"); err != nil {
		return nil, err
	}
	return f.all, nil
}

func (f *fakeStore) CategoryTotals(context.Context, int64) ([]core.CategoryTotal, error) {
	if err := f.hit("CategoryTotals"); err != nil {
		return nil, err
	}
	return f.cats, nil
}

// keywordPredictor answers from a fixed keyword table.
type keywordPredictor map[string]core.CategoryID

func (p keywordPredictor) Predict(note string, _ *decimal.Decimal) (core.CategoryID, bool) {
	for kw, id := range p {
		if strings.Contains(strings.ToLower(note), kw) {
			return id, true
		}
	}
	return 0, false
}

type recordingPublisher struct {
	mu     sync.Mutex
	synced []int64
	alerts []core.BudgetAlert
	err    error
}

func (p *recordingPublisher) PublishTransactionSync(_ context.Context, id, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.synced = append(p.synced, id)
	return nil
}

func (p *recordingPublisher) PublishBudgetAlert(_ context.Context, a core.BudgetAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.alerts = append(p.alerts, a)
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []core.BudgetAlert
	err  error
}

func (n *recordingNotifier) NotifyBudgetAlert(_ context.Context, a core.BudgetAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, a)
	return nil
}

type stubAlerts struct {
	calls int
	month core.Month
	err   error
}

func (s *stubAlerts) CheckAndNotify(_ context.Context, _ int64, month core.Month) (int, error) {
	s.calls++
	s.month = month
	return 0, s.err
}

type stubInvalidator struct{ users []int64 }

func (s *stubInvalidator) Invalidate(userID int64) { s.users = append(s.users, userID) }

var errBoom = errors.New("boom")
