package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RequirePositive checks that amount is strictly greater than zero.
func RequirePositive(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than 0", ErrValidation, field)
	}
	return nil
}

// Credit adds amount to balance.
func Credit(balance, amount decimal.Decimal) decimal.Decimal {
	return balance.Add(amount)
}

// Debit subtracts amount from balance. It refuses to go below zero.
// Example: Debit(150, 200) fails with ErrInsufficientFunds.
func Debit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	if balance.LessThan(amount) {
		return balance, fmt.Errorf("%w: have %s but tried to move %s", ErrInsufficientFunds, balance, amount)
	}
	return balance.Sub(amount), nil
}

// StartOfMonth returns the first instant of the calendar month containing t,
// in t's own location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
