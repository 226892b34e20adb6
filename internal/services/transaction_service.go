package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

var ErrCategoryRequired = errors.New("category_id required when note is empty")

type (
	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
		ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
	}

	// CategoryPredictor is satisfied by *classifier.Classifier.
	CategoryPredictor interface {
		Predict(note string, amount *decimal.Decimal) (core.CategoryID, bool)
	}

	// SyncPublisher is satisfied by *amqp.Client.
	SyncPublisher interface {
		PublishTransactionSync(ctx context.Context, id, userID int64) error
	}

	// AlertChecker runs the budget alert check after a new transaction.
	AlertChecker interface {
		CheckAndNotify(ctx context.Context, userID int64, month core.Month) (int, error)
	}

	// ReportInvalidator drops cached reports of a user.
	ReportInvalidator interface {
		Invalidate(userID int64)
	}

	TransactionRecorder interface {
		TransactionCreated(autoCategory bool)
	}
)

type CreateTransactionInput struct {
	UserID int64
	Amount decimal.Decimal
	// CategoryID zero means "let the classifier decide".
	CategoryID core.CategoryID
	Note       string
	// Date zero means today.
	Date core.Date
}

type CreateTransactionResult struct {
	ID           int64
	CategoryID   core.CategoryID
	AutoCategory bool
}

// TransactionService stores transactions and fans out the follow-up work:
// report invalidation, mirror sync and budget alerts. Follow-up failures are
// logged and never fail the request.
type TransactionService struct {
	store     TransactionStore
	predictor CategoryPredictor
	publisher SyncPublisher
	alerts    AlertChecker
	reports   ReportInvalidator
	recorder  TransactionRecorder
	now       func() time.Time
}

type TransactionServiceOption func(*TransactionService)

func WithSyncPublisher(p SyncPublisher) TransactionServiceOption {
	return func(s *TransactionService) { s.publisher = p }
}

func WithAlertChecker(a AlertChecker) TransactionServiceOption {
	return func(s *TransactionService) { s.alerts = a }
}

func WithReportInvalidator(r ReportInvalidator) TransactionServiceOption {
	return func(s *TransactionService) { s.reports = r }
}

func WithTransactionRecorder(r TransactionRecorder) TransactionServiceOption {
	return func(s *TransactionService) { s.recorder = r }
}

func NewTransactionService(store TransactionStore, predictor CategoryPredictor, opts ...TransactionServiceOption) *TransactionService {
	s := &TransactionService{
		store:     store,
		predictor: predictor,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a transaction. Without an explicit category the note is
// classified, falling back to core.CategoryOthers.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (CreateTransactionResult, error) {
	if in.UserID <= 0 {
		return CreateTransactionResult{}, core.ErrMissingUser
	}
	if !in.Amount.IsPositive() {
		return CreateTransactionResult{}, core.ErrInvalidAmount
	}

	note := strings.TrimSpace(in.Note)
	res := CreateTransactionResult{CategoryID: in.CategoryID}
	if res.CategoryID == 0 {
		if note == "" {
			return CreateTransactionResult{}, ErrCategoryRequired
		}
		res.CategoryID = s.classify(note, in.Amount)
		res.AutoCategory = true
	}

	now := s.now().UTC()
	date := in.Date
	if date.IsZero() {
		date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}

	id, err := s.store.CreateTransaction(ctx, core.Transaction{
		UserID:     in.UserID,
		CategoryID: res.CategoryID,
		Amount:     core.RoundCents(in.Amount),
		Note:       note,
		Date:       date,
	})
	if err != nil {
		return CreateTransactionResult{}, fmt.Errorf("save transaction: %w", err)
	}
	res.ID = id

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogTransactionCreated(ctx, in.UserID, id, int(res.CategoryID), in.Amount.StringFixed(2), res.AutoCategory)
	if s.recorder != nil {
		s.recorder.TransactionCreated(res.AutoCategory)
	}

	s.afterCreate(ctx, in.UserID, id, core.CurrentMonth(now))
	return res, nil
}

func (s *TransactionService) classify(note string, amount decimal.Decimal) core.CategoryID {
	if s.predictor == nil {
		return core.CategoryOthers
	}
	if id, ok := s.predictor.Predict(note, &amount); ok {
		return id
	}
	return core.CategoryOthers
}

// afterCreate runs the follow-ups of a stored transaction; month is the
// current month on the clock that dated it.
func (s *TransactionService) afterCreate(ctx context.Context, userID, id int64, month core.Month) {
	if s.reports != nil {
		s.reports.Invalidate(userID)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionSync(ctx, id, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message",
				log.FieldComponent, log.ComponentTransaction,
				log.FieldTransactionID, id,
				log.FieldError, err)
		}
	}

	if s.alerts != nil {
		if _, err := s.alerts.CheckAndNotify(ctx, userID, month); err != nil {
			slog.ErrorContext(ctx, "Budget alert check failed",
				log.FieldComponent, log.ComponentTransaction,
				log.FieldUserID, userID,
				log.FieldError, err)
		}
	}
}

// List returns the user's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, userID int64) ([]core.Transaction, error) {
	if userID <= 0 {
		return nil, core.ErrMissingUser
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
