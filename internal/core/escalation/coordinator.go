package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/config"
	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
	"github.com/ibrahimkeyboad/spendguard/internal/core/notifications"
	"github.com/ibrahimkeyboad/spendguard/internal/core/recorder"
	"github.com/ibrahimkeyboad/spendguard/internal/core/risk"
)

// EmergencyRequest asks for accelerated access to the emergency fund.
type EmergencyRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"emergency_reason"`
}

func (r EmergencyRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if !r.Amount.IsPositive() {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(r.Reason) == "" {
		missing = append(missing, "emergency_reason")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required (amount must be > 0)", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Decision is the answer to an EmergencyRequest. It moves no money.
type Decision struct {
	Approved bool            `json:"approved"`
	State    ApprovalState   `json:"state"`
	Override string          `json:"override"`
	SentTo   *config.Contact `json:"sent_to,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Coordinator escalates reckless transactions and decides emergency requests.
type Coordinator struct {
	keywords []string
	contact  config.Contact
	notifier notifications.Notifier
	recorder recorder.Recorder
	now      func() time.Time
}

func NewCoordinator(policy config.Policy, notifier notifications.Notifier, rec recorder.Recorder) *Coordinator {
	keywords := make([]string, 0, len(policy.EmergencyKeywords))
	for _, k := range policy.EmergencyKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	if notifier == nil {
		notifier = notifications.LogNotifier{}
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Coordinator{
		keywords: keywords,
		contact:  policy.FamilyContact,
		notifier: notifier,
		recorder: rec,
		now:      time.Now,
	}
}

// HandleReckless sends the reckless-transaction notification. The commit has
// already happened; failures here are logged and dropped.
func (c *Coordinator) HandleReckless(ctx context.Context, txn domain.Transaction, caps risk.CapResult) {
	now := c.now()

	err := c.notifier.Notify(ctx, notifications.Event{
		Name:   notifications.EventTransactionReckless,
		UserID: txn.UserID,
		Data: map[string]any{
			"transaction":           txn,
			"category_cap_exceeded": caps.CategoryCapExceeded,
			"monthly_cap_exceeded":  caps.MonthlyCapExceeded,
		},
		OccurredAt: now,
	})
	if err != nil {
		slog.Warn("Reckless notification not delivered", "error", err, "user_id", txn.UserID, "transaction_id", txn.TransactionID)
	}

	if err := c.recorder.RecordAlert(&recorder.AlertEvent{
		UserID:              txn.UserID,
		TransactionID:       txn.TransactionID,
		Category:            txn.Category,
		Amount:              txn.Amount,
		CategoryCapExceeded: caps.CategoryCapExceeded,
		MonthlyCapExceeded:  caps.MonthlyCapExceeded,
		OccurredAt:          now,
	}); err != nil {
		slog.Warn("Failed to record reckless alert", "error", err, "user_id", txn.UserID)
	}
}

// IsRealEmergency reports whether reason mentions any keyword, ignoring case.
func IsRealEmergency(reason string, keywords []string) bool {
	reason = strings.ToLower(reason)
	for _, k := range keywords {
		if strings.Contains(reason, k) {
			return true
		}
	}
	return false
}

// RequestEmergency auto-approves requests whose reason reads like a real
// emergency and parks the rest as pending family approval.
func (c *Coordinator) RequestEmergency(ctx context.Context, req EmergencyRequest) (*Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var d *Decision
	if IsRealEmergency(req.Reason, c.keywords) {
		d = &Decision{
			Approved: true,
			State:    StateAutoApproved,
			Override: "Auto-approved (Real Emergency)",
		}
	} else {
		contact := c.contact
		d = &Decision{
			Approved: false,
			State:    StatePending,
			Override: "Waiting for Family Approval",
			SentTo:   &contact,
			Message:  "Approval request sent to " + contact.Name,
		}
	}

	slog.Info("Emergency request decided",
		"user_id", req.UserID, "amount", req.Amount, "state", d.State)

	if err := c.recorder.RecordEmergencyDecision(&recorder.EmergencyDecision{
		UserID:     req.UserID,
		Amount:     req.Amount,
		Reason:     req.Reason,
		State:      string(d.State),
		Approved:   d.Approved,
		OccurredAt: c.now(),
	}); err != nil {
		slog.Warn("Failed to record emergency decision", "error", err, "user_id", req.UserID)
	}
	return d, nil
}
