package recorder

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the audit trail to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets reporting queries read while the service writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("SQLite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reckless_alerts (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp             INTEGER NOT NULL,
			user_id               TEXT NOT NULL,
			transaction_id        TEXT,
			category              TEXT,
			amount                TEXT,
			category_cap_exceeded INTEGER,
			monthly_cap_exceeded  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON reckless_alerts(user_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS emergency_decisions (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			user_id   TEXT NOT NULL,
			amount    TEXT,
			reason    TEXT,
			state     TEXT,
			approved  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emergency_user ON emergency_decisions(user_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS fund_movements (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			user_id        TEXT NOT NULL,
			kind           TEXT,
			amount         TEXT,
			balance_after  TEXT,
			emergency_fund TEXT,
			pms_investment TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fund_user ON fund_movements(user_id, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func stamp(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Unix()
}

func (r *SQLiteRecorder) RecordAlert(evt *AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO reckless_alerts
		(timestamp, user_id, transaction_id, category, amount, category_cap_exceeded, monthly_cap_exceeded)
		VALUES (?,?,?,?,?,?,?)`,
		stamp(evt.OccurredAt), evt.UserID, evt.TransactionID, evt.Category,
		evt.Amount.String(), evt.CategoryCapExceeded, evt.MonthlyCapExceeded,
	)
	return err
}

func (r *SQLiteRecorder) RecordEmergencyDecision(evt *EmergencyDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO emergency_decisions
		(timestamp, user_id, amount, reason, state, approved)
		VALUES (?,?,?,?,?,?)`,
		stamp(evt.OccurredAt), evt.UserID, evt.Amount.String(), evt.Reason, evt.State, evt.Approved,
	)
	return err
}

func (r *SQLiteRecorder) RecordFundMovement(evt *FundMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fund_movements
		(timestamp, user_id, kind, amount, balance_after, emergency_fund, pms_investment)
		VALUES (?,?,?,?,?,?,?)`,
		stamp(evt.OccurredAt), evt.UserID, evt.Kind, evt.Amount.String(),
		evt.BalanceAfter.String(), evt.EmergencyFund.String(), evt.PMSInvestment.String(),
	)
	return err
}

// AlertsForUser returns a user's recorded alerts, newest first.
func (r *SQLiteRecorder) AlertsForUser(userID string, limit int) ([]AlertEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT timestamp, transaction_id, category, amount, category_cap_exceeded, monthly_cap_exceeded
		FROM reckless_alerts WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AlertEvent{}
	for rows.Next() {
		var (
			ts     int64
			amount string
			evt    = AlertEvent{UserID: userID}
		)
		if err := rows.Scan(&ts, &evt.TransactionID, &evt.Category, &amount, &evt.CategoryCapExceeded, &evt.MonthlyCapExceeded); err != nil {
			return nil, err
		}
		if evt.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse alert amount %q: %w", amount, err)
		}
		evt.OccurredAt = time.Unix(ts, 0)
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	slog.Info("Closing SQLite recorder")
	return r.db.Close()
}
