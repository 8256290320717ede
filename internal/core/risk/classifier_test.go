package risk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

func sampleTxn() domain.Transaction {
	return domain.Transaction{
		TransactionID: "T-42",
		UserID:        "U001",
		Timestamp:     nov,
		Category:      "Shopping",
		Amount:        decimal.RequireFromString("1250.50"),
		Type:          "debit",
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{in: "Reckless\n", want: true},
		{in: "Normal", want: false},
		{in: "  Not Reckless \n", want: false},
		{in: "reckless", wantErr: true},
		{in: "", wantErr: true},
		{in: "Error: boom", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLabel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLabel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLabel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEncodePayloadNumericAmount(t *testing.T) {
	body, err := EncodePayload(sampleTxn())
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if amt, ok := decoded["amount"].(float64); !ok || amt != 1250.50 {
		t.Errorf("amount = %#v, want number 1250.50", decoded["amount"])
	}
	if decoded["user_id"] != "U001" || decoded["category"] != "Shopping" {
		t.Errorf("payload = %s", body)
	}
}

func TestHTTPClassifier(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/reckless":
			io.WriteString(w, "Reckless\n")
		case "/normal":
			io.WriteString(w, "Normal")
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			io.WriteString(w, "Normal")
		default:
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	got, err := NewHTTPClassifier(srv.URL+"/reckless").Classify(ctx, sampleTxn())
	if err != nil || !got {
		t.Errorf("reckless: got %v, err %v", got, err)
	}
	if len(gotBody) == 0 {
		t.Error("payload was not posted")
	}

	got, err = NewHTTPClassifier(srv.URL+"/normal").Classify(ctx, sampleTxn())
	if err != nil || got {
		t.Errorf("normal: got %v, err %v", got, err)
	}

	if _, err := NewHTTPClassifier(srv.URL+"/broken").Classify(ctx, sampleTxn()); err == nil {
		t.Error("expected error on 500")
	}

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := NewHTTPClassifier(srv.URL+"/slow").Classify(tctx, sampleTxn()); err == nil {
		t.Error("expected error on timeout")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "model.sh")
	if err := os.WriteFile(path, []byte(body), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessClassifier(t *testing.T) {
	ctx := context.Background()

	t.Run("reckless", func(t *testing.T) {
		script := writeScript(t, "case \"$1\" in *U001*) echo Reckless ;; *) echo Normal ;; esac\n")
		got, err := NewProcessClassifier("sh", script).Classify(ctx, sampleTxn())
		if err != nil || !got {
			t.Errorf("got %v, err %v", got, err)
		}
	})

	t.Run("not reckless", func(t *testing.T) {
		script := writeScript(t, "echo 'Not Reckless'\n")
		got, err := NewProcessClassifier("sh", script).Classify(ctx, sampleTxn())
		if err != nil || got {
			t.Errorf("got %v, err %v", got, err)
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		script := writeScript(t, "echo 'Error: model missing' >&2\nexit 1\n")
		if _, err := NewProcessClassifier("sh", script).Classify(ctx, sampleTxn()); err == nil {
			t.Error("expected error on non-zero exit")
		}
	})

	t.Run("stderr with clean exit", func(t *testing.T) {
		script := writeScript(t, "echo 'warning: stale scaler' >&2\necho Normal\n")
		if _, err := NewProcessClassifier("sh", script).Classify(ctx, sampleTxn()); err == nil {
			t.Error("expected error when stderr is written")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		script := writeScript(t, "exec sleep 5\n")
		tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if _, err := NewProcessClassifier("sh", script).Classify(tctx, sampleTxn()); err == nil {
			t.Error("expected error on timeout")
		}
	})
}
