package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

// Committer persists a classified transaction.
type Committer interface {
	InsertTransaction(ctx context.Context, txn domain.Transaction) error
}

// Store is everything the pipeline needs from persistence.
type Store interface {
	LimitsReader
	SpendAggregator
	Committer
}

// RecklessHandler is told about every committed reckless transaction. It must
// not fail the caller; delivery problems are its own business.
type RecklessHandler interface {
	HandleReckless(ctx context.Context, txn domain.Transaction, caps CapResult)
}

// Request is an incoming spend event.
type Request struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
	Category      string          `json:"category"`
	Type          string          `json:"type"`
}

// Validate reports every missing required field at once.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if !r.Amount.IsPositive() {
		missing = append(missing, "amount")
	}
	if r.Timestamp.IsZero() {
		missing = append(missing, "timestamp")
	}
	if strings.TrimSpace(r.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required (amount must be > 0)", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Result is the committed transaction plus how its verdict was reached.
type Result struct {
	CapResult
	Transaction         domain.Transaction `json:"transaction"`
	ClassifierConsulted bool               `json:"classifier_consulted"`
	IsReckless          bool               `json:"is_reckless"`
}

type Options struct {
	MonthlyCeiling    decimal.Decimal
	ClassifierTimeout time.Duration
}

// Service runs the classification pipeline: caps, then (only if no cap
// tripped) the classifier, then commit, then escalation.
type Service struct {
	caps       *CapEvaluator
	classifier Classifier
	store      Committer
	escalation RecklessHandler
	timeout    time.Duration
	locks      *keyLock
	newID      func() string
}

// NewService wires the pipeline. escalation may be nil.
func NewService(store Store, classifier Classifier, escalation RecklessHandler, opts Options) *Service {
	return &Service{
		caps:       NewCapEvaluator(store, store, opts.MonthlyCeiling),
		classifier: classifier,
		store:      store,
		escalation: escalation,
		timeout:    opts.ClassifierTimeout,
		locks:      newKeyLock(),
		newID:      func() string { return uuid.NewString() },
	}
}

// Classify decides whether req is reckless and commits it with that verdict.
// Validation and unknown-user errors come back before anything is stored;
// classifier or store failures abort the call with ErrDependency and nothing
// is committed.
func (s *Service) Classify(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	txn := domain.Transaction{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		Timestamp:     req.Timestamp,
		Category:      req.Category,
		Amount:        req.Amount,
		Type:          req.Type,
	}
	if txn.TransactionID == "" {
		txn.TransactionID = s.newID()
	}

	res, err := s.decideAndCommit(ctx, txn)
	if err != nil {
		return nil, err
	}

	if res.IsReckless && s.escalation != nil {
		slog.Info("Triggering emergency protocol", "user_id", txn.UserID, "transaction_id", txn.TransactionID)
		s.escalation.HandleReckless(context.WithoutCancel(ctx), res.Transaction, res.CapResult)
	}
	return res, nil
}

func (s *Service) decideAndCommit(ctx context.Context, txn domain.Transaction) (*Result, error) {
	unlock := s.locks.Lock(txn.UserID)
	defer unlock()

	caps, err := s.caps.Evaluate(ctx, txn)
	if err != nil {
		return nil, err
	}

	res := &Result{CapResult: caps, IsReckless: caps.PreliminaryReckless()}
	if !res.IsReckless {
		res.ClassifierConsulted = true
		verdict, err := s.consult(ctx, txn)
		if err != nil {
			slog.Error("Classifier failed, transaction not committed",
				"error", err, "user_id", txn.UserID, "transaction_id", txn.TransactionID)
			return nil, fmt.Errorf("%w: classifier: %v", domain.ErrDependency, err)
		}
		res.IsReckless = verdict
	}

	txn.IsReckless = res.IsReckless
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("%w: commit transaction: %v", domain.ErrDependency, err)
	}
	res.Transaction = txn

	slog.Info("Transaction classified",
		"user_id", txn.UserID,
		"transaction_id", txn.TransactionID,
		"is_reckless", res.IsReckless,
		"category_cap_exceeded", res.CategoryCapExceeded,
		"monthly_cap_exceeded", res.MonthlyCapExceeded,
	)
	return res, nil
}

// consult makes exactly one bounded classifier call.
func (s *Service) consult(ctx context.Context, txn domain.Transaction) (bool, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.classifier.Classify(ctx, txn)
}
