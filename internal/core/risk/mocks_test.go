package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

var ErrMockStore = errors.New("mock store error")

// fakeStore keeps users and transactions in memory.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*domain.UserLimits
	txns      []domain.Transaction
	insertErr error
	sumErr    error
}

func newFakeStore(users ...domain.UserLimits) *fakeStore {
	s := &fakeStore{users: make(map[string]*domain.UserLimits)}
	for i := range users {
		u := users[i]
		s.users[u.UserID] = &u
	}
	return s
}

func (s *fakeStore) GetLimits(ctx context.Context, userID string) (*domain.UserLimits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) SumSpend(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sumErr != nil {
		return decimal.Zero, s.sumErr
	}
	total := decimal.Zero
	for _, t := range s.txns {
		if t.UserID == userID && !t.Timestamp.Before(since) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (s *fakeStore) InsertTransaction(ctx context.Context, txn domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.txns = append(s.txns, txn)
	return nil
}

func (s *fakeStore) committed() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction(nil), s.txns...)
}

// mockClassifier counts calls and returns a fixed verdict.
type mockClassifier struct {
	mu        sync.Mutex
	CallCount int
	Verdict   bool
	Err       error
	Delay     time.Duration
	LastTxn   domain.Transaction
}

func (m *mockClassifier) Classify(ctx context.Context, txn domain.Transaction) (bool, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastTxn = txn
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return m.Verdict, m.Err
}

func (m *mockClassifier) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// recordingHandler captures reckless escalations.
type recordingHandler struct {
	mu   sync.Mutex
	txns []domain.Transaction
}

func (h *recordingHandler) HandleReckless(ctx context.Context, txn domain.Transaction, caps CapResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.txns = append(h.txns, txn)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.txns)
}
