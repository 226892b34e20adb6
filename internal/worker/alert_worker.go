package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/amqp"
	"expensetracker/internal/log"
	"expensetracker/internal/notify"
)

// AlertWorker delivers budget alerts taken off the alert queue.
type AlertWorker struct {
	notifier notify.Notifier
}

func NewAlertWorker(notifier notify.Notifier) *AlertWorker {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &AlertWorker{notifier: notifier}
}

// HandleBudgetAlert sends the alert in msg. Alerts without a recipient or
// with a malformed month are dropped, since redelivery cannot fix them.
func (w *AlertWorker) HandleBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	alert, err := msg.Alert()
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed budget alert",
			log.FieldComponent, log.ComponentWorker,
			log.FieldUserID, msg.UserID,
			log.FieldError, err)
		return nil
	}

	if err := w.notifier.NotifyBudgetAlert(ctx, alert); err != nil {
		if errors.Is(err, notify.ErrNoRecipient) {
			slog.WarnContext(ctx, "Budget alert has no recipient",
				log.FieldComponent, log.ComponentWorker,
				log.FieldUserID, alert.UserID)
			return nil
		}
		return fmt.Errorf("notify budget alert: %w", err)
	}

	slog.InfoContext(ctx, "Budget alert delivered",
		log.FieldComponent, log.ComponentWorker,
		log.FieldUserID, alert.UserID,
		log.FieldCategoryID, int(alert.CategoryID),
		log.FieldMonth, alert.Month.String())
	return nil
}
