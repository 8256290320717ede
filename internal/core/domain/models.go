package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a spend event. Once committed it is never mutated.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type,omitempty"` // informational only
	IsReckless    bool            `json:"is_reckless"`
}

// UserLimits is the spending profile and balances of one user.
type UserLimits struct {
	UserID         string                     `json:"user_id"`
	MonthlyIncome  decimal.Decimal            `json:"monthly_income"`
	WeeklyCap      decimal.NullDecimal        `json:"weekly_cap"`
	MaxSingleSpend decimal.NullDecimal        `json:"max_single_spend"`
	CategoryCaps   map[string]decimal.Decimal `json:"category_caps"`
	Balance        decimal.Decimal            `json:"balance"`
	EmergencyFund  decimal.Decimal            `json:"emergency_fund"`
	PMSInvestment  decimal.Decimal            `json:"pms_investment"`
}

// CategoryCap returns the configured cap for category, if any.
func (u UserLimits) CategoryCap(category string) (decimal.Decimal, bool) {
	c, ok := u.CategoryCaps[category]
	return c, ok
}

// Funds is the mutable money part of UserLimits. Ledger operations work on it
// inside a per-user critical section.
type Funds struct {
	Balance       decimal.Decimal `json:"balance"`
	EmergencyFund decimal.Decimal `json:"emergency_fund"`
	PMSInvestment decimal.Decimal `json:"pms_investment"`
}

// Funds extracts the balances of u.
func (u UserLimits) Funds() Funds {
	return Funds{
		Balance:       u.Balance,
		EmergencyFund: u.EmergencyFund,
		PMSInvestment: u.PMSInvestment,
	}
}

// CapsUpdate is a partial update of the cap configuration. Nil fields are left
// untouched; a non-nil CategoryCaps replaces the whole map.
type CapsUpdate struct {
	MonthlyIncome  *decimal.Decimal           `json:"monthly_income"`
	WeeklyCap      *decimal.Decimal           `json:"weekly_cap"`
	MaxSingleSpend *decimal.Decimal           `json:"max_single_spend"`
	CategoryCaps   map[string]decimal.Decimal `json:"category_caps"`
}

// Apply writes the non-nil fields of c onto u.
func (c CapsUpdate) Apply(u *UserLimits) {
	if c.MonthlyIncome != nil {
		u.MonthlyIncome = *c.MonthlyIncome
	}
	if c.WeeklyCap != nil {
		u.WeeklyCap = decimal.NewNullDecimal(*c.WeeklyCap)
	}
	if c.MaxSingleSpend != nil {
		u.MaxSingleSpend = decimal.NewNullDecimal(*c.MaxSingleSpend)
	}
	if c.CategoryCaps != nil {
		caps := make(map[string]decimal.Decimal, len(c.CategoryCaps))
		for k, v := range c.CategoryCaps {
			caps[k] = v
		}
		u.CategoryCaps = caps
	}
}

// Validate rejects negative cap values.
func (c CapsUpdate) Validate() error {
	check := func(field string, v *decimal.Decimal) error {
		if v != nil && v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrValidation, field)
		}
		return nil
	}
	if err := check("monthly_income", c.MonthlyIncome); err != nil {
		return err
	}
	if err := check("weekly_cap", c.WeeklyCap); err != nil {
		return err
	}
	if err := check("max_single_spend", c.MaxSingleSpend); err != nil {
		return err
	}
	for cat, v := range c.CategoryCaps {
		if err := check("category_caps."+cat, &v); err != nil {
			return err
		}
	}
	return nil
}
