package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/notify"
)

type captureNotifier struct {
	got []core.BudgetAlert
	err error
}

func (n *captureNotifier) NotifyBudgetAlert(_ context.Context, a core.BudgetAlert) error {
	if n.err != nil {
		return n.err
	}
	n.got = append(n.got, a)
	return nil
}

func sampleAlert(email string) core.BudgetAlert {
	return core.BudgetAlert{
		UserID:      1,
		Email:       email,
		CategoryID:  1,
		Category:    "Food",
		Limit:       decimal.NewFromInt(100),
		Spent:       decimal.NewFromInt(95),
		UsedPercent: decimal.NewFromInt(95),
		Month:       core.Month{Year: 2024, Month: time.March},
	}
}

func TestAlertWorker_HandleBudgetAlert(t *testing.T) {
	n := &captureNotifier{}
	w := NewAlertWorker(n)

	require.NoError(t, w.HandleBudgetAlert(context.Background(), amqp.NewBudgetAlertMessage(sampleAlert("a@example.com"))))
	require.Len(t, n.got, 1)
	assert.Equal(t, "Food", n.got[0].Category)
	assert.Equal(t, "2024-03", n.got[0].Month.String())
}

func TestAlertWorker_DropsUnfixableMessages(t *testing.T) {
	w := NewAlertWorker(&captureNotifier{err: notify.ErrNoRecipient})
	assert.NoError(t, w.HandleBudgetAlert(context.Background(), amqp.NewBudgetAlertMessage(sampleAlert(""))))

	msg := amqp.NewBudgetAlertMessage(sampleAlert("a@example.com"))
	msg.Month = "March"
	assert.NoError(t, NewAlertWorker(&captureNotifier{}).HandleBudgetAlert(context.Background(), msg))
}

func TestAlertWorker_DeliveryErrorRequestsRedelivery(t *testing.T) {
	boom := errors.New("smtp down")
	w := NewAlertWorker(&captureNotifier{err: boom})

	err := w.HandleBudgetAlert(context.Background(), amqp.NewBudgetAlertMessage(sampleAlert("a@example.com")))
	assert.ErrorIs(t, err, boom)
}
