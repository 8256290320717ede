package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/ibrahimkeyboad/spendguard/internal/core/domain"
)

// Labels produced by the predictive classifier.
const (
	LabelReckless    = "Reckless"
	LabelNormal      = "Normal"
	LabelNotReckless = "Not Reckless" // what the bundled model script prints
)

// Classifier is the secondary opinion consulted when no cap tripped. Any error
// means no verdict.
type Classifier interface {
	Classify(ctx context.Context, txn domain.Transaction) (reckless bool, err error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, txn domain.Transaction) (bool, error)

func (f ClassifierFunc) Classify(ctx context.Context, txn domain.Transaction) (bool, error) {
	return f(ctx, txn)
}

// ParseLabel turns the classifier's text output into a verdict. Unknown labels
// are errors so a garbled reply never passes as "Normal".
func ParseLabel(out string) (bool, error) {
	switch label := strings.TrimSpace(out); label {
	case LabelReckless:
		return true, nil
	case LabelNormal, LabelNotReckless:
		return false, nil
	default:
		return false, fmt.Errorf("unrecognised classifier label %q", label)
	}
}

type payload struct {
	UserID        string      `json:"user_id"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	Category      string      `json:"category"`
	Amount        json.Number `json:"amount"`
	Type          string      `json:"type,omitempty"`
}

// EncodePayload renders txn the way the classifier expects it: a flat JSON
// object with a numeric amount.
func EncodePayload(txn domain.Transaction) ([]byte, error) {
	return json.Marshal(payload{
		UserID:        txn.UserID,
		TransactionID: txn.TransactionID,
		Timestamp:     txn.Timestamp,
		Category:      txn.Category,
		Amount:        json.Number(txn.Amount.String()),
		Type:          txn.Type,
	})
}

// ProcessClassifier runs a local model script once per call, passing the
// payload as its only argument and reading the label from stdout.
type ProcessClassifier struct {
	Command string // e.g. "python"
	Script  string // e.g. "ml_model.py"
}

func NewProcessClassifier(command, script string) *ProcessClassifier {
	return &ProcessClassifier{Command: command, Script: script}
}

func (p *ProcessClassifier) Classify(ctx context.Context, txn domain.Transaction) (bool, error) {
	body, err := EncodePayload(txn)
	if err != nil {
		return false, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Command, p.Script, string(body))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Do not wait forever on pipes a killed script's children may still hold.
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, fmt.Errorf("classifier process: %w", ctxErr)
		}
		return false, fmt.Errorf("classifier process: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	// A clean exit with diagnostics on stderr is still a failure.
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return false, fmt.Errorf("classifier process wrote to stderr: %s", msg)
	}

	return ParseLabel(stdout.String())
}

// HTTPClassifier posts the payload to a model service and reads a plain-text
// label from the response body.
type HTTPClassifier struct {
	URL    string
	Client *http.Client
}

func NewHTTPClassifier(url string) *HTTPClassifier {
	return &HTTPClassifier{URL: url, Client: &http.Client{}}
}

func (h *HTTPClassifier) Classify(ctx context.Context, txn domain.Transaction) (bool, error) {
	body, err := EncodePayload(txn)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := h.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return false, fmt.Errorf("read classifier response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(out)))
	}

	return ParseLabel(string(out))
}
