// Package inmemory is a process-local store used when no DATABASE_URL is
// configured, and by handler tests.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

type response struct {
	status int
	body   []byte
}

type Store struct {
	mu           sync.RWMutex
	users        map[string]*domain.UserLimits
	transactions []domain.Transaction
	idempotency  map[string]response
}

func NewStore() *Store {
	return &Store{
		users:       make(map[string]*domain.UserLimits),
		idempotency: make(map[string]response),
	}
}

// DemoUser is the profile seeded in development mode.
func DemoUser() domain.UserLimits {
	return domain.UserLimits{
		UserID:        "U001",
		MonthlyIncome: decimal.NewFromInt(50000),
		CategoryCaps: map[string]decimal.Decimal{
			"Food":          decimal.NewFromInt(500),
			"Entertainment": decimal.NewFromInt(2000),
			"Shopping":      decimal.NewFromInt(5000),
		},
		Balance: decimal.NewFromInt(20000),
	}
}

func (s *Store) CreateUser(_ context.Context, u domain.UserLimits) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.UserID]; ok {
		return fmt.Errorf("user %s already exists", u.UserID)
	}
	s.users[u.UserID] = clone(&u)
	return nil
}

func (s *Store) GetLimits(_ context.Context, userID string) (*domain.UserLimits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	return clone(u), nil
}

func (s *Store) SumSpend(_ context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, t := range s.transactions {
		if t.UserID == userID && !t.Timestamp.Before(since) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (s *Store) InsertTransaction(_ context.Context, txn domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[txn.UserID]; !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, txn.UserID)
	}
	s.transactions = append(s.transactions, txn)
	return nil
}

// ListTransactions returns newest first; ties keep the later insert first.
func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := []domain.Transaction{}
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			history = append(history, s.transactions[i])
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.After(history[j].Timestamp)
	})
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (s *Store) UpdateCaps(_ context.Context, userID string, upd domain.CapsUpdate) (*domain.UserLimits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	upd.Apply(u)
	return clone(u), nil
}

func (s *Store) UpdateFunds(_ context.Context, userID string, fn func(f *domain.Funds) error) (*domain.Funds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	f := u.Funds()
	if err := fn(&f); err != nil {
		return nil, err
	}
	u.Balance, u.EmergencyFund, u.PMSInvestment = f.Balance, f.EmergencyFund, f.PMSInvestment
	return &f, nil
}

// Reserve claims key under the store lock. A zero status in the map marks a
// request still in flight.
func (s *Store) Reserve(_ context.Context, key string) (bool, int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.idempotency[key]; ok {
		return false, r.status, r.body, nil
	}
	s.idempotency[key] = response{}
	return true, 0, nil, nil
}

func (s *Store) Complete(_ context.Context, key string, status int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotency[key] = response{status: status, body: append([]byte(nil), body...)}
	return nil
}

func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.idempotency[key]; ok && r.status == 0 {
		delete(s.idempotency, key)
	}
	return nil
}

func clone(u *domain.UserLimits) *domain.UserLimits {
	c := *u
	if u.CategoryCaps != nil {
		c.CategoryCaps = make(map[string]decimal.Decimal, len(u.CategoryCaps))
		for k, v := range u.CategoryCaps {
			c.CategoryCaps[k] = v
		}
	}
	return &c
}
