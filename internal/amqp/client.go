package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client publishes and consumes messages on a direct exchange. Each queue is
// bound with its own name as routing key.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	alertQueue   string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient connects and declares the exchange plus the sync and alert queues.
// An empty alertQueue disables alert routing.
func NewClient(url, exchangeName, queueName, alertQueue string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		alertQueue:   alertQueue,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

// ensureConnected reconnects only when the current channel is gone, so
// consumers sharing the client do not tear down each other's channel.
func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setupLocked(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	return nil
}

func (c *Client) setupLocked() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range c.queues() {
		if _, err := c.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

func (c *Client) queues() []string {
	qs := []string{c.queueName}
	if c.alertQueue != "" {
		qs = append(qs, c.alertQueue)
	}
	return qs
}

// PublishTransactionSync asks workers to mirror a newly stored transaction.
func (c *Client) PublishTransactionSync(ctx context.Context, id, userID int64) error {
	body, err := NewTransactionSyncMessage(id, userID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queueName, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction sync message",
		log.FieldComponent, log.ComponentAMQP,
		log.FieldTransactionID, id,
		log.FieldUserID, userID,
		"queue", c.queueName)
	return nil
}

// PublishBudgetAlert hands a budget alert to the notification worker.
func (c *Client) PublishBudgetAlert(ctx context.Context, alert core.BudgetAlert) error {
	if c.alertQueue == "" {
		return errors.New("alert queue not configured")
	}
	body, err := NewBudgetAlertMessage(alert).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.alertQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published budget alert message",
		log.FieldComponent, log.ComponentAMQP,
		log.FieldUserID, alert.UserID,
		log.FieldCategoryID, int(alert.CategoryID),
		log.FieldMonth, alert.Month.String())
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		if err := c.connectLocked(); err != nil {
			c.recordFailure()
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeTransactionSync delivers sync messages to handler until ctx is done.
func (c *Client) ConsumeTransactionSync(ctx context.Context, handler func(context.Context, *TransactionSyncMessage) error) error {
	return c.consume(ctx, c.queueName, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := TransactionSyncMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, msg)
	})
}

// ConsumeBudgetAlerts delivers alert messages to handler until ctx is done.
func (c *Client) ConsumeBudgetAlerts(ctx context.Context, handler func(context.Context, *BudgetAlertMessage) error) error {
	if c.alertQueue == "" {
		return errors.New("alert queue not configured")
	}
	return c.consume(ctx, c.alertQueue, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := BudgetAlertMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, msg)
	})
}

// deliveryHandler reports whether the body was well formed, and the handling error.
type deliveryHandler func(ctx context.Context, body []byte) (bool, error)

// consume reconnects with exponential backoff whenever the delivery channel closes.
func (c *Client) consume(ctx context.Context, queue string, handle deliveryHandler) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, queue, handle)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption",
				log.FieldComponent, log.ComponentAMQP,
				"queue", queue,
				"reason", ctx.Err())
			return ctx.Err()
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "Consumer interrupted, reconnecting",
			log.FieldComponent, log.ComponentAMQP,
			"queue", queue,
			log.FieldError, err,
			"retry_in", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := c.ensureConnected(); err != nil {
			slog.ErrorContext(ctx, "Reconnect failed",
				log.FieldComponent, log.ComponentAMQP,
				log.FieldError, err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) consumeOnce(ctx context.Context, queue string, handle deliveryHandler) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil || channel.IsClosed() {
		return errors.New("channel closed")
	}

	msgs, err := channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages",
		log.FieldComponent, log.ComponentAMQP,
		"queue", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			wellFormed, err := handle(ctx, delivery.Body)
			switch {
			case !wellFormed:
				slog.ErrorContext(ctx, "Failed to unmarshal message",
					log.FieldComponent, log.ComponentAMQP,
					"queue", queue,
					log.FieldError, err)
				_ = delivery.Nack(false, false)
			case err != nil:
				slog.ErrorContext(ctx, "Failed to handle message",
					log.FieldComponent, log.ComponentAMQP,
					"queue", queue,
					log.FieldError, err)
				_ = delivery.Nack(false, !delivery.Redelivered)
			default:
				_ = delivery.Ack(false)
			}
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// recordFailure expects mu to be held.
func (c *Client) recordFailure() {
	c.lastFailure = time.Now()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
