package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc processes one message body.  A returned error rejects the
// message without requeueing it.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer reads one durable queue and hands every delivery to its
// handler.  Run keeps reconnecting with exponential backoff until the
// context is cancelled.
type Consumer struct {
	URL      string
	Queue    string
	Prefetch int
	Handle   HandlerFunc
	Log      *zap.Logger
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("queue", c.Queue))

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = 50
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		log.Warn("consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(ctx, d.Body); err != nil {
			log.Error("consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RegistrationLog appends registration.completed messages to a log
// file, one line per invoice.
type RegistrationLog struct {
	Path string

	mu sync.Mutex
}

// NewRegistrationLog writes to logs/registration.log under dir.
func NewRegistrationLog(dir string) *RegistrationLog {
	return &RegistrationLog{Path: filepath.Join(dir, "registration.log")}
}

// Handle implements HandlerFunc.
func (l *RegistrationLog) Handle(_ context.Context, body []byte) error {
	var ev RegistrationCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatRegistrationLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatRegistrationLine renders ev as a single log line.
func FormatRegistrationLine(ev RegistrationCompletedEvent) string {
	workshops := make([]string, len(ev.WorkshopIDs))
	for i, id := range ev.WorkshopIDs {
		workshops[i] = fmt.Sprint(id)
	}
	discount := "none"
	if ev.DiscountID != nil {
		discount = fmt.Sprint(*ev.DiscountID)
	}
	return fmt.Sprintf("[%s] Registration completed | reference=%s | invoice_id=%d | user_id=%d | event_id=%d | event=%q | session=%t | workshops=[%s] | discount=%s | total=%d | free=%t\n",
		ev.CompletedAt, ev.Reference, ev.InvoiceID, ev.UserID, ev.EventID, ev.EventName,
		ev.Session, strings.Join(workshops, ","), discount, ev.TotalCost, ev.IsFree)
}

// Notifier delivers one-time codes to users.
type Notifier interface {
	Deliver(ctx context.Context, ev OTPRequestedEvent) error
}

// LogNotifier records OTP deliveries in the application log.  It stands
// in for SMS and email providers.
type LogNotifier struct {
	Log *zap.Logger
}

// Deliver implements Notifier.
func (n LogNotifier) Deliver(_ context.Context, ev OTPRequestedEvent) error {
	n.Log.Info("otp delivered",
		zap.String("username", ev.Username),
		zap.String("channel", ev.Channel),
		zap.String("expires_at", ev.ExpiresAt),
	)
	return nil
}

// OTPHandler decodes otp.requested messages and passes them to n.
func OTPHandler(n Notifier) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var ev OTPRequestedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.Username == "" || ev.Code == "" {
			return errors.New("otp message without username or code")
		}
		return n.Deliver(ctx, ev)
	}
}
