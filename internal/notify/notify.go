// Package notify delivers budget alerts to users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

var ErrNoRecipient = errors.New("alert has no recipient email")

// Notifier delivers one budget alert.
type Notifier interface {
	NotifyBudgetAlert(ctx context.Context, alert core.BudgetAlert) error
}

// Subject renders the alert subject line.
func Subject(a core.BudgetAlert) string {
	return fmt.Sprintf("Budget Alert: %s - %s%% Used", categoryName(a), a.UsedPercent.StringFixed(1))
}

// Body renders the plain-text alert message.
func Body(a core.BudgetAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	fmt.Fprintf(&b, "Your budget for %s in %s has reached %s%% usage.\n\n", categoryName(a), a.Month, a.UsedPercent.StringFixed(1))
	fmt.Fprintf(&b, "Details:\n")
	fmt.Fprintf(&b, "- Category: %s\n", categoryName(a))
	fmt.Fprintf(&b, "- Budget Limit: $%s\n", a.Limit.StringFixed(2))
	fmt.Fprintf(&b, "- Amount Spent: $%s\n", a.Spent.StringFixed(2))
	fmt.Fprintf(&b, "- Usage: %s%%\n\n", a.UsedPercent.StringFixed(1))
	fmt.Fprintf(&b, "Please review your spending to stay within budget.\n\n")
	fmt.Fprintf(&b, "Best regards,\nSmart Expense Tracker")
	return b.String()
}

func categoryName(a core.BudgetAlert) string {
	if a.Category == "" {
		return "Unknown"
	}
	return a.Category
}

// LogNotifier writes alerts to the structured log. Used when SMTP is not configured.
type LogNotifier struct{}

func (LogNotifier) NotifyBudgetAlert(ctx context.Context, a core.BudgetAlert) error {
	if a.Email == "" {
		return ErrNoRecipient
	}
	slog.InfoContext(ctx, "Budget alert",
		log.FieldComponent, log.ComponentNotify,
		log.FieldUserID, a.UserID,
		log.FieldCategoryID, int(a.CategoryID),
		log.FieldMonth, a.Month.String(),
		"subject", Subject(a))
	return nil
}
