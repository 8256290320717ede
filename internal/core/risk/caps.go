package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

// LimitsReader is the read side of the user profile store.
type LimitsReader interface {
	GetLimits(ctx context.Context, userID string) (*domain.UserLimits, error)
}

// SpendAggregator sums a user's committed spend from a lower time bound.
type SpendAggregator interface {
	SumSpend(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)
}

// CapResult is the rule-based part of a verdict.
type CapResult struct {
	CategoryCapExceeded bool            `json:"category_cap_exceeded"`
	MonthlyCapExceeded  bool            `json:"monthly_cap_exceeded"`
	MonthlySpend        decimal.Decimal `json:"monthly_spend"` // existing + candidate
}

// PreliminaryReckless reports whether either cap tripped.
func (r CapResult) PreliminaryReckless() bool {
	return r.CategoryCapExceeded || r.MonthlyCapExceeded
}

// CapEvaluator applies the per-category and monthly ceilings. Both checks only
// label the transaction; neither rejects it.
type CapEvaluator struct {
	limits         LimitsReader
	spend          SpendAggregator
	monthlyCeiling decimal.Decimal
}

func NewCapEvaluator(limits LimitsReader, spend SpendAggregator, monthlyCeiling decimal.Decimal) *CapEvaluator {
	return &CapEvaluator{limits: limits, spend: spend, monthlyCeiling: monthlyCeiling}
}

// Evaluate looks up the user's limits and checks txn against them. An unknown
// user is ErrNotFound; a store failure is ErrDependency.
func (e *CapEvaluator) Evaluate(ctx context.Context, txn domain.Transaction) (CapResult, error) {
	var res CapResult

	limits, err := e.limits.GetLimits(ctx, txn.UserID)
	if err != nil {
		return res, wrapStoreErr("load user limits", err)
	}

	// Equal to the cap is still within it.
	if c, ok := limits.CategoryCap(txn.Category); ok && txn.Amount.GreaterThan(c) {
		res.CategoryCapExceeded = true
		slog.Info("Category cap exceeded",
			"user_id", txn.UserID, "category", txn.Category, "cap", c, "amount", txn.Amount)
	}

	// Lower bound only: spend dated after the candidate's month still counts.
	spent, err := e.spend.SumSpend(ctx, txn.UserID, domain.StartOfMonth(txn.Timestamp))
	if err != nil {
		return res, wrapStoreErr("sum monthly spend", err)
	}
	res.MonthlySpend = spent.Add(txn.Amount)
	if res.MonthlySpend.GreaterThan(e.monthlyCeiling) {
		res.MonthlyCapExceeded = true
		slog.Info("Monthly cap exceeded",
			"user_id", txn.UserID, "ceiling", e.monthlyCeiling, "new_total", res.MonthlySpend)
	}

	return res, nil
}

// wrapStoreErr keeps ErrNotFound as is and turns anything else into ErrDependency.
func wrapStoreErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrDependency, op, err)
}
