package recorder

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertEvent is one reckless transaction that was escalated.
type AlertEvent struct {
	UserID              string          `json:"user_id"`
	TransactionID       string          `json:"transaction_id"`
	Category            string          `json:"category"`
	Amount              decimal.Decimal `json:"amount"`
	CategoryCapExceeded bool            `json:"category_cap_exceeded"`
	MonthlyCapExceeded  bool            `json:"monthly_cap_exceeded"`
	OccurredAt          time.Time       `json:"occurred_at"`
}

// EmergencyDecision is the outcome of one emergency-fund request.
type EmergencyDecision struct {
	UserID     string
	Amount     decimal.Decimal
	Reason     string
	State      string // AUTO_APPROVED, PENDING, ...
	Approved   bool
	OccurredAt time.Time
}

// FundMovement records a balance change made by the fund ledger.
type FundMovement struct {
	UserID        string
	Kind          string // EMERGENCY_TOPUP, EMERGENCY_WITHDRAWAL, PMS_INVEST
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	EmergencyFund decimal.Decimal
	PMSInvestment decimal.Decimal
	OccurredAt    time.Time
}

// Recorder keeps the escalation audit trail.
type Recorder interface {
	RecordAlert(evt *AlertEvent) error
	RecordEmergencyDecision(evt *EmergencyDecision) error
	RecordFundMovement(evt *FundMovement) error
	Close() error
}
