package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
	"github.com/ibrahimkeyboad/spendguard/internal/core/risk"
)

// Store reads and updates user cap configuration.
type Store interface {
	risk.LimitsReader
	risk.SpendAggregator
	UpdateCaps(ctx context.Context, userID string, upd domain.CapsUpdate) (*domain.UserLimits, error)
}

// Summary is a user's cap configuration together with what they have spent.
type Summary struct {
	UserID         string                     `json:"user_id"`
	MonthlyIncome  decimal.Decimal            `json:"monthly_income"`
	WeeklyCap      decimal.NullDecimal        `json:"weekly_cap"`
	MaxSingleSpend decimal.NullDecimal        `json:"max_single_spend"`
	CategoryCaps   map[string]decimal.Decimal `json:"category_caps"`
	Balance        decimal.Decimal            `json:"balance"`
	TotalSpent     decimal.Decimal            `json:"total_spent"`
	Savings        decimal.Decimal            `json:"savings"`
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Caps returns the summary for userID. TotalSpent covers all committed
// transactions; Savings is income minus that, floored at zero.
func (s *Service) Caps(ctx context.Context, userID string) (*Summary, error) {
	u, err := s.store.GetLimits(ctx, userID)
	if err != nil {
		return nil, wrap("load caps", err)
	}
	spent, err := s.store.SumSpend(ctx, userID, time.Time{})
	if err != nil {
		return nil, wrap("sum spend", err)
	}
	return summarize(u, spent), nil
}

// UpdateCaps applies upd and returns the new summary.
func (s *Service) UpdateCaps(ctx context.Context, userID string, upd domain.CapsUpdate) (*Summary, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	u, err := s.store.UpdateCaps(ctx, userID, upd)
	if err != nil {
		return nil, wrap("update caps", err)
	}
	spent, err := s.store.SumSpend(ctx, userID, time.Time{})
	if err != nil {
		return nil, wrap("sum spend", err)
	}
	return summarize(u, spent), nil
}

func summarize(u *domain.UserLimits, spent decimal.Decimal) *Summary {
	caps := u.CategoryCaps
	if caps == nil {
		caps = map[string]decimal.Decimal{}
	}
	return &Summary{
		UserID:         u.UserID,
		MonthlyIncome:  u.MonthlyIncome,
		WeeklyCap:      u.WeeklyCap,
		MaxSingleSpend: u.MaxSingleSpend,
		CategoryCaps:   caps,
		Balance:        u.Balance,
		TotalSpent:     spent,
		Savings:        decimal.Max(decimal.Zero, u.MonthlyIncome.Sub(spent)),
	}
}

func wrap(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrDependency, op, err)
}
