package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const selectLimits = `
	SELECT user_id, monthly_income, weekly_cap, max_single_spend, category_caps,
	       balance, emergency_fund, pms_investment
	FROM users WHERE user_id = $1`

// rowQuerier is satisfied by both the pool and a pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanLimits(ctx context.Context, q rowQuerier, query, userID string) (*domain.UserLimits, error) {
	var (
		u    domain.UserLimits
		caps []byte
	)
	err := q.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.MonthlyIncome, &u.WeeklyCap, &u.MaxSingleSpend, &caps,
		&u.Balance, &u.EmergencyFund, &u.PMSInvestment,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	if len(caps) > 0 {
		if err := json.Unmarshal(caps, &u.CategoryCaps); err != nil {
			return nil, fmt.Errorf("decode category caps for %s: %w", userID, err)
		}
	}
	return &u, nil
}

// CreateUser provisions a profile. Used by seeding and tests; the service
// itself never creates users.
func (r *UserRepository) CreateUser(ctx context.Context, u domain.UserLimits) error {
	caps, err := json.Marshal(capsOrEmpty(u.CategoryCaps))
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO users (user_id, monthly_income, weekly_cap, max_single_spend, category_caps,
		                   balance, emergency_fund, pms_investment)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)`,
		u.UserID, u.MonthlyIncome, u.WeeklyCap, u.MaxSingleSpend, string(caps),
		u.Balance, u.EmergencyFund, u.PMSInvestment,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetLimits loads a user's caps and balances.
func (r *UserRepository) GetLimits(ctx context.Context, userID string) (*domain.UserLimits, error) {
	return scanLimits(ctx, r.db, selectLimits, userID)
}

// UpdateCaps applies a partial cap update under a row lock.
func (r *UserRepository) UpdateCaps(ctx context.Context, userID string, upd domain.CapsUpdate) (*domain.UserLimits, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	u, err := scanLimits(ctx, tx, selectLimits+" FOR UPDATE", userID)
	if err != nil {
		return nil, err
	}
	upd.Apply(u)

	caps, err := json.Marshal(capsOrEmpty(u.CategoryCaps))
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE users SET monthly_income = $2, weekly_cap = $3, max_single_spend = $4, category_caps = $5::jsonb
		WHERE user_id = $1`,
		userID, u.MonthlyIncome, u.WeeklyCap, u.MaxSingleSpend, string(caps),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update caps: %w", err)
	}
	return u, tx.Commit(ctx)
}

// UpdateFunds locks the user row, lets fn change the balances and writes them
// back. Nothing is written if fn fails.
func (r *UserRepository) UpdateFunds(ctx context.Context, userID string, fn func(f *domain.Funds) error) (*domain.Funds, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var f domain.Funds
	err = tx.QueryRow(ctx,
		`SELECT balance, emergency_fund, pms_investment FROM users WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&f.Balance, &f.EmergencyFund, &f.PMSInvestment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	if err := fn(&f); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET balance = $2, emergency_fund = $3, pms_investment = $4 WHERE user_id = $1`,
		userID, f.Balance, f.EmergencyFund, f.PMSInvestment); err != nil {
		return nil, fmt.Errorf("failed to update funds: %w", err)
	}
	return &f, tx.Commit(ctx)
}

func capsOrEmpty(caps map[string]decimal.Decimal) map[string]decimal.Decimal {
	if caps == nil {
		return map[string]decimal.Decimal{}
	}
	return caps
}
