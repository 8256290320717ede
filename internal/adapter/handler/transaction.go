package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
	"github.com/ibrahimkeyboad/spendguard/internal/core/risk"
)

const historyLimit = 100

// HistoryReader lists a user's committed transactions, newest first.
type HistoryReader interface {
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
}

type TransactionHandler struct {
	Risk    *risk.Service
	History HistoryReader
}

// ClassifyRequest is the wire form of a spend event. Timestamp accepts
// RFC 3339 or "YYYY-MM-DD HH:MM:SS" (read as UTC).
type ClassifyRequest struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     string          `json:"timestamp"`
	Category      string          `json:"category"`
	Type          string          `json:"type"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q is not a recognised format", domain.ErrValidation, s)
}

// Classify runs the risk pipeline on one transaction.
func (h *TransactionHandler) Classify(c *fiber.Ctx) error {
	var body ClassifyRequest
	if err := c.BodyParser(&body); err != nil {
		return badBody(c, err)
	}

	ts, err := parseTimestamp(body.Timestamp)
	if err != nil {
		return respondError(c, err)
	}

	res, err := h.Risk.Classify(c.UserContext(), risk.Request{
		TransactionID: body.TransactionID,
		UserID:        body.UserID,
		Amount:        body.Amount,
		Timestamp:     ts,
		Category:      body.Category,
		Type:          body.Type,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"is_reckless":           res.IsReckless,
		"category_cap_exceeded": res.CategoryCapExceeded,
		"monthly_cap_exceeded":  res.MonthlyCapExceeded,
		"classifier_consulted":  res.ClassifierConsulted,
		"saved":                 true,
		"transaction":           res.Transaction,
	})
}

// GetHistory returns the latest transactions of :user_id.
func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	history, err := h.History.ListTransactions(c.UserContext(), userID, historyLimit)
	if err != nil {
		return respondError(c, fmt.Errorf("%w: list transactions: %v", domain.ErrDependency, err))
	}
	return c.JSON(fiber.Map{"user_id": userID, "transactions": history})
}
