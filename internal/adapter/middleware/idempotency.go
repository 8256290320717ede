package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

const IdempotencyHeader = "Idempotency-Key"

// IdempotencyStore tracks Idempotency-Keys. Reserve claims a key atomically:
// reserved is true only for the first caller. Later callers get the stored
// status and body, or status 0 while the first request is still running.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (reserved bool, status int, body []byte, err error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

// Idempotency runs a request at most once per Idempotency-Key and replays
// the stored response afterwards. Requests without the header pass through
// untouched. 5xx responses release the key so the client can retry.
func Idempotency(store IdempotencyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyHeader)
		if key == "" {
			return c.Next()
		}
		// Scoped by path so one key cannot replay another endpoint. POST and
		// PUT on the same path share a handler and therefore a key.
		scoped := c.Path() + " " + key
		ctx := c.UserContext()

		reserved, status, body, err := store.Reserve(ctx, scoped)
		if err != nil {
			slog.Error("Idempotency reservation failed", "error", err, "key", key)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal dependency failure"})
		}
		if !reserved {
			if status == 0 {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a request with this Idempotency-Key is still in progress"})
			}
			slog.Info("Idempotency hit, returning cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(status).Send(body)
		}

		// The reservation must be settled even if the client goes away.
		settleCtx := context.WithoutCancel(ctx)
		if err := c.Next(); err != nil {
			release(settleCtx, store, scoped)
			return err
		}

		resStatus := c.Response().StatusCode()
		if resStatus >= fiber.StatusInternalServerError {
			release(settleCtx, store, scoped)
			return nil
		}
		resBody := append([]byte(nil), c.Response().Body()...)
		if err := store.Complete(settleCtx, scoped, resStatus, resBody); err != nil {
			slog.Error("Failed to save idempotent response", "error", err, "key", key)
		}
		return nil
	}
}

func release(ctx context.Context, store IdempotencyStore, key string) {
	if err := store.Release(ctx, key); err != nil {
		slog.Error("Failed to release idempotency key", "error", err, "key", key)
	}
}
