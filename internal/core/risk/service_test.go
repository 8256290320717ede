package risk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

var nov = time.Date(2025, time.November, 15, 10, 30, 0, 0, time.UTC)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testUser() domain.UserLimits {
	return domain.UserLimits{
		UserID:        "U001",
		MonthlyIncome: dec(60000),
		CategoryCaps:  map[string]decimal.Decimal{"Food": dec(500)},
		Balance:       dec(10000),
	}
}

func newTestService(store *fakeStore, cls Classifier, h RecklessHandler) *Service {
	return NewService(store, cls, h, Options{
		MonthlyCeiling:    dec(100000),
		ClassifierTimeout: time.Second,
	})
}

func TestClassify_CategoryCapExceeded(t *testing.T) {
	store := newFakeStore(testUser())
	cls := &mockClassifier{}
	h := &recordingHandler{}
	svc := newTestService(store, cls, h)

	res, err := svc.Classify(context.Background(), Request{
		UserID: "U001", Amount: dec(600), Timestamp: nov, Category: "Food",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.CategoryCapExceeded || !res.IsReckless {
		t.Errorf("expected category cap reckless, got %+v", res)
	}
	if cls.calls() != 0 || res.ClassifierConsulted {
		t.Errorf("classifier must not be called when a cap trips (calls=%d)", cls.calls())
	}
	got := store.committed()
	if len(got) != 1 || !got[0].IsReckless {
		t.Fatalf("committed = %+v", got)
	}
	if h.count() != 1 {
		t.Errorf("escalations = %d, want 1", h.count())
	}
}

func TestClassify_CategoryCapBoundary(t *testing.T) {
	store := newFakeStore(testUser())
	cls := &mockClassifier{Verdict: false}
	svc := newTestService(store, cls, nil)

	res, err := svc.Classify(context.Background(), Request{
		UserID: "U001", Amount: dec(500), Timestamp: nov, Category: "Food",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.CategoryCapExceeded {
		t.Error("amount equal to cap must not trip the category check")
	}
	if cls.calls() != 1 {
		t.Errorf("classifier calls = %d, want 1", cls.calls())
	}
	if res.IsReckless {
		t.Error("expected Normal verdict to pass through")
	}
}

func TestClassify_MonthlyCapExceeded(t *testing.T) {
	store := newFakeStore(testUser())
	store.txns = []domain.Transaction{
		{UserID: "U001", Amount: dec(99950), Timestamp: time.Date(2025, time.November, 2, 9, 0, 0, 0, time.UTC), Category: "Bills"},
		// previous month does not count
		{UserID: "U001", Amount: dec(5000), Timestamp: time.Date(2025, time.October, 31, 23, 59, 0, 0, time.UTC), Category: "Bills"},
		// other user does not count
		{UserID: "U002", Amount: dec(5000), Timestamp: nov, Category: "Bills"},
	}
	cls := &mockClassifier{}
	svc := newTestService(store, cls, nil)

	res, err := svc.Classify(context.Background(), Request{
		UserID: "U001", Amount: dec(100), Timestamp: nov, Category: "Shopping",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.MonthlyCapExceeded || !res.IsReckless {
		t.Errorf("expected monthly cap reckless, got %+v", res)
	}
	if res.CategoryCapExceeded {
		t.Error("Shopping has no cap configured")
	}
	if !res.MonthlySpend.Equal(dec(100050)) {
		t.Errorf("monthly spend = %s, want 100050", res.MonthlySpend)
	}
	if cls.calls() != 0 {
		t.Errorf("classifier calls = %d, want 0", cls.calls())
	}
}

func TestClassify_BackdatedTransactionCountsLaterSpend(t *testing.T) {
	store := newFakeStore(testUser())
	store.txns = []domain.Transaction{
		{UserID: "U001", Amount: dec(99950), Timestamp: time.Date(2025, time.December, 3, 9, 0, 0, 0, time.UTC), Category: "Bills"},
	}
	svc := newTestService(store, &mockClassifier{}, nil)

	res, err := svc.Classify(context.Background(), Request{
		UserID: "U001", Amount: dec(100), Timestamp: nov, Category: "Shopping",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !res.MonthlySpend.Equal(dec(100050)) || !res.MonthlyCapExceeded {
		t.Errorf("monthly spend = %s exceeded = %v, want 100050 true", res.MonthlySpend, res.MonthlyCapExceeded)
	}
}

func TestClassify_MonthlyCapEqualCeiling(t *testing.T) {
	store := newFakeStore(testUser())
	store.txns = []domain.Transaction{{UserID: "U001", Amount: dec(99900), Timestamp: nov, Category: "Bills"}}
	svc := newTestService(store, &mockClassifier{}, nil)

	res, err := svc.Classify(context.Background(), Request{
		UserID: "U001", Amount: dec(100), Timestamp: nov, Category: "Shopping",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.MonthlyCapExceeded {
		t.Error("reaching the ceiling exactly is not exceeding it")
	}
}

func TestClassify_ClassifierVerdictPassesThrough(t *testing.T) {
	for _, verdict := range []bool{true, false} {
		store := newFakeStore(testUser())
		cls := &mockClassifier{Verdict: verdict}
		h := &recordingHandler{}
		svc := newTestService(store, cls, h)

		res, err := svc.Classify(context.Background(), Request{
			UserID: "U001", Amount: dec(50), Timestamp: nov, Category: "Travel", Type: "debit",
		})
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		if res.IsReckless != verdict {
			t.Errorf("verdict %v: is_reckless = %v", verdict, res.IsReckless)
		}
		if !res.ClassifierConsulted || cls.calls() != 1 {
			t.Errorf("verdict %v: classifier calls = %d", verdict, cls.calls())
		}
		if cls.LastTxn.Type != "debit" {
			t.Errorf("classifier did not receive full payload: %+v", cls.LastTxn)
		}
		wantEscalations := 0
		if verdict {
			wantEscalations = 1
		}
		if h.count() != wantEscalations {
			t.Errorf("verdict %v: escalations = %d", verdict, h.count())
		}
	}
}

func TestClassify_ClassifierFailureCommitsNothing(t *testing.T) {
	store := newFakeStore(testUser())
	cls := &mockClassifier{Err: errors.New("exit status 1")}
	h := &recordingHandler{}
	svc := newTestService(store, cls, h)

	_, err := svc.Classify(context.Background(), Request{
		UserID: "U001", Amount: dec(50), Timestamp: nov, Category: "Travel",
	})
	if !errors.Is(err, domain.ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}
	if n := len(store.committed()); n != 0 {
		t.Errorf("committed %d transactions after classifier failure", n)
	}
	if h.count() != 0 {
		t.Error("no escalation expected")
	}
}

func TestClassify_ClassifierTimeout(t *testing.T) {
	store := newFakeStore(testUser())
	cls := &mockClassifier{Delay: time.Second}
	svc := NewService(store, cls, nil, Options{
		MonthlyCeiling:    dec(100000),
		ClassifierTimeout: 20 * time.Millisecond,
	})

	_, err := svc.Classify(context.Background(), Request{
		UserID: "U001", Amount: dec(50), Timestamp: nov, Category: "Travel",
	})
	if !errors.Is(err, domain.ErrDependency) {
		t.Fatalf("expected ErrDependency on timeout, got %v", err)
	}
	if cls.calls() != 1 {
		t.Errorf("classifier calls = %d, want exactly 1", cls.calls())
	}
	if len(store.committed()) != 0 {
		t.Error("nothing should be committed on timeout")
	}
}

func TestClassify_StoreFailures(t *testing.T) {
	t.Run("insert", func(t *testing.T) {
		store := newFakeStore(testUser())
		store.insertErr = ErrMockStore
		h := &recordingHandler{}
		svc := newTestService(store, &mockClassifier{}, h)

		_, err := svc.Classify(context.Background(), Request{
			UserID: "U001", Amount: dec(600), Timestamp: nov, Category: "Food",
		})
		if !errors.Is(err, domain.ErrDependency) {
			t.Fatalf("expected ErrDependency, got %v", err)
		}
		if h.count() != 0 {
			t.Error("escalation must follow a successful commit only")
		}
	})

	t.Run("aggregate", func(t *testing.T) {
		store := newFakeStore(testUser())
		store.sumErr = ErrMockStore
		cls := &mockClassifier{}
		svc := newTestService(store, cls, nil)

		_, err := svc.Classify(context.Background(), Request{
			UserID: "U001", Amount: dec(50), Timestamp: nov, Category: "Travel",
		})
		if !errors.Is(err, domain.ErrDependency) {
			t.Fatalf("expected ErrDependency, got %v", err)
		}
		if cls.calls() != 0 {
			t.Error("classifier should not run after a store failure")
		}
	})
}

func TestClassify_Validation(t *testing.T) {
	svc := newTestService(newFakeStore(testUser()), &mockClassifier{}, nil)

	tests := []struct {
		name string
		req  Request
	}{
		{name: "missing user", req: Request{Amount: dec(10), Timestamp: nov, Category: "Food"}},
		{name: "zero amount", req: Request{UserID: "U001", Timestamp: nov, Category: "Food"}},
		{name: "negative amount", req: Request{UserID: "U001", Amount: dec(-5), Timestamp: nov, Category: "Food"}},
		{name: "missing timestamp", req: Request{UserID: "U001", Amount: dec(10), Category: "Food"}},
		{name: "missing category", req: Request{UserID: "U001", Amount: dec(10), Timestamp: nov}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Classify(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestClassify_UnknownUser(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &mockClassifier{}, nil)

	_, err := svc.Classify(context.Background(), Request{
		UserID: "ghost", Amount: dec(10), Timestamp: nov, Category: "Food",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(store.committed()) != 0 {
		t.Error("unknown user must not be committed")
	}
}

func TestClassify_TransactionIDs(t *testing.T) {
	store := newFakeStore(testUser())
	svc := newTestService(store, &mockClassifier{}, nil)
	ctx := context.Background()

	res, err := svc.Classify(ctx, Request{UserID: "U001", Amount: dec(10), Timestamp: nov, Category: "Food"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Transaction.TransactionID == "" {
		t.Error("expected a generated transaction id")
	}

	// Same caller-supplied id twice: both are recorded.
	for i := 0; i < 2; i++ {
		if _, err := svc.Classify(ctx, Request{TransactionID: "T-1", UserID: "U001", Amount: dec(10), Timestamp: nov, Category: "Food"}); err != nil {
			t.Fatal(err)
		}
	}
	dups := 0
	for _, txn := range store.committed() {
		if txn.TransactionID == "T-1" {
			dups++
		}
	}
	if dups != 2 {
		t.Errorf("duplicate submissions recorded %d times, want 2", dups)
	}
}

func TestClassify_ConcurrentSameUserSerialized(t *testing.T) {
	store := newFakeStore(testUser())
	cls := &mockClassifier{Delay: 20 * time.Millisecond}
	svc := NewService(store, cls, nil, Options{MonthlyCeiling: dec(1000), ClassifierTimeout: time.Second})

	const n = 4
	var wg sync.WaitGroup
	results := make([]*Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Classify(context.Background(), Request{
				UserID: "U001", Amount: dec(600), Timestamp: nov, Category: "Travel",
			})
			if err != nil {
				t.Errorf("Classify: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	passed := 0
	for _, r := range results {
		if r != nil && !r.MonthlyCapExceeded {
			passed++
		}
	}
	if passed != 1 {
		t.Errorf("%d concurrent transactions passed the monthly check, want exactly 1", passed)
	}
}
