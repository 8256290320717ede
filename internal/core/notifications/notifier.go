package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const EventTransactionReckless = "transaction.reckless"

// Event is the envelope every notification is delivered in.
type Event struct {
	Name       string    `json:"event"`
	UserID     string    `json:"user_id"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"timestamp"`
}

// Notifier delivers events keyed by user. Callers treat errors as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// WebhookNotifier sends each event straight to one URL from a background
// goroutine. Notify only fails when the event cannot be encoded.
type WebhookNotifier struct {
	URL    string
	Secret string
	send   func(ctx context.Context, url string, body []byte, secret string) error
}

func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Secret: secret, send: SendWebhook}
}

func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Name, err)
	}

	go func() {
		if err := n.send(context.WithoutCancel(ctx), n.URL, body, n.Secret); err != nil {
			slog.Error("❌ Webhook failed", "error", err, "event", event.Name, "user_id", event.UserID)
			return
		}
		slog.Info("✅ Webhook sent successfully!", "event", event.Name, "user_id", event.UserID)
	}()
	return nil
}

// Enqueuer stores a webhook for later delivery by the worker.
type Enqueuer interface {
	EnqueueWebhook(ctx context.Context, url string, payload []byte) error
}

// OutboxNotifier queues events for the webhook worker instead of sending them
// inline, so delivery is retried across restarts.
type OutboxNotifier struct {
	URL   string
	Queue Enqueuer
}

func NewOutboxNotifier(url string, queue Enqueuer) *OutboxNotifier {
	return &OutboxNotifier{URL: url, Queue: queue}
}

func (n *OutboxNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Name, err)
	}
	if err := n.Queue.EnqueueWebhook(ctx, n.URL, body); err != nil {
		return fmt.Errorf("queue %s webhook: %w", event.Name, err)
	}
	slog.Info("✅ Webhook queued for Worker!", "event", event.Name, "user_id", event.UserID)
	return nil
}

// LogNotifier only logs. Used when no webhook target is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, event Event) error {
	slog.Warn("🚨 Notification (no webhook configured)", "event", event.Name, "user_id", event.UserID)
	return nil
}
