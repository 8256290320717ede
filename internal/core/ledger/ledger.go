package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
	"github.com/ibrahimkeyboad/spendguard/internal/core/recorder"
)

// Movement kinds.
const (
	KindEmergencyTopUp      = "EMERGENCY_TOPUP"
	KindEmergencyWithdrawal = "EMERGENCY_WITHDRAWAL"
	KindPMSInvest           = "PMS_INVEST"
)

// FundStore runs fn against a user's balances with the user row locked, and
// saves the result only if fn succeeds. Unknown users yield domain.ErrNotFound.
type FundStore interface {
	UpdateFunds(ctx context.Context, userID string, fn func(f *domain.Funds) error) (*domain.Funds, error)
}

// Movement is the outcome of one ledger operation.
type Movement struct {
	Kind   string          `json:"kind"`
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	Funds  domain.Funds    `json:"funds"`
}

// Service moves money between a user's balance, emergency fund and PMS
// investment. No operation leaves any of them negative.
type Service struct {
	store    FundStore
	recorder recorder.Recorder
}

func NewService(store FundStore, rec recorder.Recorder) *Service {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Service{store: store, recorder: rec}
}

// TopUpEmergencyFund adds amount to the emergency fund.
func (s *Service) TopUpEmergencyFund(ctx context.Context, userID string, amount decimal.Decimal) (*Movement, error) {
	return s.apply(ctx, KindEmergencyTopUp, userID, amount, func(f *domain.Funds) error {
		f.EmergencyFund = domain.Credit(f.EmergencyFund, amount)
		return nil
	})
}

// WithdrawEmergencyFund takes amount out of the emergency fund, refusing to
// overdraw it.
func (s *Service) WithdrawEmergencyFund(ctx context.Context, userID string, amount decimal.Decimal) (*Movement, error) {
	return s.apply(ctx, KindEmergencyWithdrawal, userID, amount, func(f *domain.Funds) error {
		left, err := domain.Debit(f.EmergencyFund, amount)
		if err != nil {
			return fmt.Errorf("emergency fund: %w", err)
		}
		f.EmergencyFund = left
		return nil
	})
}

// InvestPMS moves amount from the spendable balance into PMS investment.
// It is rejected when the balance cannot cover it.
func (s *Service) InvestPMS(ctx context.Context, userID string, amount decimal.Decimal) (*Movement, error) {
	return s.apply(ctx, KindPMSInvest, userID, amount, func(f *domain.Funds) error {
		left, err := domain.Debit(f.Balance, amount)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		f.Balance = left
		f.PMSInvestment = domain.Credit(f.PMSInvestment, amount)
		return nil
	})
}

func (s *Service) apply(ctx context.Context, kind, userID string, amount decimal.Decimal, fn func(f *domain.Funds) error) (*Movement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id required", domain.ErrValidation)
	}
	if err := domain.RequirePositive("amount", amount); err != nil {
		return nil, err
	}

	funds, err := s.store.UpdateFunds(ctx, userID, fn)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDependency, strings.ToLower(kind), err)
	}

	slog.Info("💰 Funds updated", "kind", kind, "user_id", userID, "amount", amount)

	if err := s.recorder.RecordFundMovement(&recorder.FundMovement{
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		BalanceAfter:  funds.Balance,
		EmergencyFund: funds.EmergencyFund,
		PMSInvestment: funds.PMSInvestment,
		OccurredAt:    time.Now(),
	}); err != nil {
		slog.Warn("Failed to record fund movement", "error", err, "user_id", userID)
	}

	return &Movement{Kind: kind, UserID: userID, Amount: amount, Funds: *funds}, nil
}
