package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ibrahimkeyboad/spendguard/internal/core/notifications"
)

const (
	maxAttempts  = 5
	jobsPerCycle = 20
)

// Job is one queued webhook delivery.
type Job struct {
	ID       string
	URL      string
	Payload  []byte
	Attempts int
}

// JobQueue is the webhook outbox. ClaimNext returns nil, nil when nothing is
// due.
type JobQueue interface {
	ClaimNext(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, nextRun time.Time) error
	Fail(ctx context.Context, id string) error
}

type sendFunc func(ctx context.Context, url string, body []byte, secret string) error

// WebhookWorker drains the outbox on a cron schedule.
type WebhookWorker struct {
	queue  JobQueue
	secret string
	send   sendFunc
	now    func() time.Time
	cron   *cron.Cron
}

func NewWebhookWorker(queue JobQueue, secret string) *WebhookWorker {
	if secret == "" {
		slog.Warn("⚠️ WEBHOOK_SECRET is missing, webhooks will be sent unsigned")
	}
	return &WebhookWorker{
		queue:  queue,
		secret: secret,
		send:   notifications.SendWebhook,
		now:    time.Now,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start schedules ProcessJobs with a cron spec such as "@every 5s".
func (w *WebhookWorker) Start(ctx context.Context, schedule string) error {
	if _, err := w.cron.AddFunc(schedule, func() { w.ProcessJobs(ctx) }); err != nil {
		return err
	}
	w.cron.Start()
	slog.Info("👷 Webhook Worker started", "schedule", schedule)
	return nil
}

// Stop waits for a running cycle to finish.
func (w *WebhookWorker) Stop() {
	<-w.cron.Stop().Done()
	slog.Info("Webhook Worker stopped")
}

// ProcessJobs delivers due jobs until the queue is empty or the per-cycle cap
// is hit.
func (w *WebhookWorker) ProcessJobs(ctx context.Context) {
	for i := 0; i < jobsPerCycle; i++ {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.ClaimNext(ctx)
		if err != nil {
			slog.Error("Worker: Failed to claim job", "error", err)
			return
		}
		if job == nil {
			return
		}
		w.process(ctx, job)
	}
}

func (w *WebhookWorker) process(ctx context.Context, job *Job) {
	if !json.Valid(job.Payload) {
		slog.Error("Worker: Invalid payload", "job_id", job.ID)
		w.mark(job.ID, w.queue.Fail(ctx, job.ID))
		return
	}

	slog.Info("Worker: Processing job", "url", job.URL, "job_id", job.ID)

	if err := w.send(ctx, job.URL, job.Payload, w.secret); err != nil {
		slog.Error("Worker: Webhook failed", "error", err, "attempts", job.Attempts)

		if job.Attempts >= maxAttempts {
			w.mark(job.ID, w.queue.Fail(ctx, job.ID))
			slog.Error("Worker: Job marked as FAILED (Max attempts reached)", "job_id", job.ID)
			return
		}
		nextRun := w.now().Add(time.Duration(job.Attempts*10+10) * time.Second)
		w.mark(job.ID, w.queue.Retry(ctx, job.ID, nextRun))
		slog.Info("Worker: Scheduled retry", "job_id", job.ID, "next_run", nextRun)
		return
	}

	slog.Info("✅ Worker: Webhook Sent Successfully!", "job_id", job.ID)
	w.mark(job.ID, w.queue.Complete(ctx, job.ID))
}

func (w *WebhookWorker) mark(id string, err error) {
	if err != nil {
		slog.Error("Worker: Failed to update job status", "error", err, "job_id", id)
	}
}
