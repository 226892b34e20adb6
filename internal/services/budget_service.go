package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/notify"
)

// DefaultAlertThreshold is the used percentage above which an alert fires.
var DefaultAlertThreshold = decimal.NewFromInt(90)

type (
	BudgetStore interface {
		UpsertBudget(ctx context.Context, b core.Budget) (int64, error)
		BudgetStatuses(ctx context.Context, userID int64, month core.Month) ([]core.BudgetStatus, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
	}

	// AlertPublisher is satisfied by *amqp.Client.
	AlertPublisher interface {
		PublishBudgetAlert(ctx context.Context, alert core.BudgetAlert) error
	}

	AlertRecorder interface {
		BudgetAlertRaised()
	}
)

type BudgetService struct {
	store     BudgetStore
	threshold decimal.Decimal
	publisher AlertPublisher
	notifier  notify.Notifier
	recorder  AlertRecorder
}

type BudgetServiceOption func(*BudgetService)

// WithAlertPublisher routes alerts through the broker; the notifier is then
// only used when publishing fails.
func WithAlertPublisher(p AlertPublisher) BudgetServiceOption {
	return func(s *BudgetService) { s.publisher = p }
}

func WithAlertRecorder(r AlertRecorder) BudgetServiceOption {
	return func(s *BudgetService) { s.recorder = r }
}

func NewBudgetService(store BudgetStore, threshold decimal.Decimal, notifier notify.Notifier, opts ...BudgetServiceOption) *BudgetService {
	if !threshold.IsPositive() {
		threshold = DefaultAlertThreshold
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	s := &BudgetService{store: store, threshold: threshold, notifier: notifier}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert creates or replaces the budget for (user, category, month).
func (s *BudgetService) Upsert(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	b.Limit = core.RoundCents(b.Limit)
	id, err := s.store.UpsertBudget(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("save budget: %w", err)
	}
	return id, nil
}

// Status reports usage of every budget the user set for month.
func (s *BudgetService) Status(ctx context.Context, userID int64, month core.Month) ([]core.BudgetStatus, error) {
	if userID <= 0 {
		return nil, core.ErrMissingUser
	}
	statuses, err := s.store.BudgetStatuses(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}
	return statuses, nil
}

// Alerts returns the budgets of month whose usage is strictly above the
// threshold. Users without an email address get none.
func (s *BudgetService) Alerts(ctx context.Context, userID int64, month core.Month) ([]core.BudgetAlert, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Email == "" {
		return nil, nil
	}

	statuses, err := s.Status(ctx, userID, month)
	if err != nil {
		return nil, err
	}

	var alerts []core.BudgetAlert
	for _, st := range statuses {
		if !st.Exceeds(s.threshold) {
			continue
		}
		alerts = append(alerts, core.BudgetAlert{
			UserID:      userID,
			Email:       user.Email,
			CategoryID:  st.CategoryID,
			Category:    st.Category,
			Limit:       st.Limit,
			Spent:       st.Spent,
			UsedPercent: st.UsedPercent,
			Month:       month,
		})
	}
	return alerts, nil
}

// CheckAndNotify dispatches every alert for month and returns how many were
// handed off. A failed dispatch does not stop the others.
func (s *BudgetService) CheckAndNotify(ctx context.Context, userID int64, month core.Month) (int, error) {
	alerts, err := s.Alerts(ctx, userID, month)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for _, a := range alerts {
		if s.recorder != nil {
			s.recorder.BudgetAlertRaised()
		}
		if err := s.dispatch(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("alert for category %d: %w", a.CategoryID, err))
			continue
		}
		sent++
	}

	slog.InfoContext(ctx, "Budget alerts checked",
		log.FieldComponent, log.ComponentBudget,
		log.FieldOperation, log.OpAlert,
		log.FieldUserID, userID,
		log.FieldMonth, month.String(),
		"alerts", len(alerts),
		"sent", sent)
	return sent, errors.Join(errs...)
}

func (s *BudgetService) dispatch(ctx context.Context, a core.BudgetAlert) error {
	if s.publisher != nil {
		err := s.publisher.PublishBudgetAlert(ctx, a)
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "Publishing budget alert failed, notifying directly",
			log.FieldComponent, log.ComponentBudget,
			log.FieldUserID, a.UserID,
			log.FieldCategoryID, int(a.CategoryID),
			log.FieldError, err)
	}
	return s.notifier.NotifyBudgetAlert(ctx, a)
}
