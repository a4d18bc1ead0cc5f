// Package store persists agents and evaluated transactions in SQLite.
// It doubles as the engine's primary trust source and as a verdict sink:
// every evaluation lands here, and agent counters move with each verdict.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/aegischain/aegisd/internal/model"
)

// ErrNotFound is returned when an agent or transaction does not exist.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	tx_id          TEXT UNIQUE NOT NULL,
	agent_address  TEXT NOT NULL,
	target_address TEXT NOT NULL,
	value_eth      TEXT NOT NULL,
	function_sig   TEXT,
	intent         TEXT,
	protocol       TEXT,
	decision       TEXT NOT NULL,
	risk_level     TEXT NOT NULL,
	risk_score     INTEGER NOT NULL,
	block_reason   TEXT,
	ai_explanation TEXT,
	timestamp      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tx_agent ON transactions(agent_address);
CREATE INDEX IF NOT EXISTS idx_tx_time  ON transactions(timestamp);

CREATE TABLE IF NOT EXISTS agents (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	address       TEXT UNIQUE NOT NULL,
	name          TEXT NOT NULL,
	trust_score   INTEGER NOT NULL DEFAULT 100,
	is_active     INTEGER NOT NULL DEFAULT 1,
	tx_count      INTEGER NOT NULL DEFAULT 0,
	blocked_count INTEGER NOT NULL DEFAULT 0,
	registered_at TEXT NOT NULL
);
`

// Store wraps the SQLite handle. Safe for concurrent use; SQLite's own
// locking serializes writers.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY churn under concurrent verdicts.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// TxRecord is one persisted evaluation.
type TxRecord struct {
	TxID          string          `json:"tx_id"`
	AgentAddress  string          `json:"agent_address"`
	TargetAddress string          `json:"target_address"`
	Value         decimal.Decimal `json:"value_eth"`
	FunctionSig   string          `json:"function_sig,omitempty"`
	Intent        string          `json:"intent,omitempty"`
	Protocol      string          `json:"protocol,omitempty"`
	Decision      model.Decision  `json:"decision"`
	RiskTier      model.RiskTier  `json:"risk_level"`
	RiskScore     int             `json:"risk_score"`
	BlockReason   string          `json:"block_reason,omitempty"`
	Explanation   string          `json:"ai_explanation,omitempty"`
	Timestamp     string          `json:"timestamp"`
}

// Record persists a verdict and bumps the agent's counters when the agent
// is registered. Satisfies the engine's Sink interface.
func (s *Store) Record(ctx context.Context, c model.Candidate, v model.Verdict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(tx_id, agent_address, target_address, value_eth, function_sig,
			 intent, protocol, decision, risk_level, risk_score,
			 block_reason, ai_explanation, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.TxID, model.NormalizeAddress(c.AgentAddress), model.NormalizeAddress(c.TargetAddress),
		c.Value.String(), c.FunctionSig, c.Intent, c.Protocol,
		string(v.Decision), string(v.RiskTier), v.RiskScore,
		v.BlockReason, v.Explanation, v.Timestamp)
	if err != nil {
		return fmt.Errorf("store: record tx %s: %w", v.TxID, err)
	}

	blocked := 0
	if v.Decision == model.Blocked {
		blocked = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE agents SET tx_count = tx_count + 1, blocked_count = blocked_count + ?
		WHERE address = ?`,
		blocked, model.NormalizeAddress(c.AgentAddress)); err != nil {
		s.log.Warn("agent counter update failed",
			zap.String("agent", c.AgentAddress), zap.Error(err))
	}
	return nil
}

// Transaction fetches one record by tx id.
func (s *Store) Transaction(ctx context.Context, txID string) (TxRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tx_id, agent_address, target_address, value_eth, function_sig,
		       intent, protocol, decision, risk_level, risk_score,
		       block_reason, ai_explanation, timestamp
		FROM transactions WHERE tx_id = ?`, txID)
	rec, err := scanTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TxRecord{}, ErrNotFound
	}
	return rec, err
}

// History returns recent transactions, newest first. An empty agent
// returns all agents' history.
func (s *Store) History(ctx context.Context, agent string, limit int) ([]TxRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT tx_id, agent_address, target_address, value_eth, function_sig,
		       intent, protocol, decision, risk_level, risk_score,
		       block_reason, ai_explanation, timestamp
		FROM transactions`
	args := []any{}
	if agent != "" {
		query += ` WHERE agent_address = ?`
		args = append(args, model.NormalizeAddress(agent))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var out []TxRecord
	for rows.Next() {
		rec, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats are the dashboard counters.
type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Blocked  int `json:"blocked"`
	Pending  int `json:"pending"`
}

// Stats counts transactions by decision.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(decision = 'APPROVED'), 0),
		       COALESCE(SUM(decision = 'BLOCKED'), 0),
		       COALESCE(SUM(decision = 'PENDING'), 0)
		FROM transactions`).Scan(&st.Total, &st.Approved, &st.Blocked, &st.Pending)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTx(row rowScanner) (TxRecord, error) {
	var rec TxRecord
	var value string
	var fnSig, intent, protocol, reason, expl sql.NullString
	err := row.Scan(&rec.TxID, &rec.AgentAddress, &rec.TargetAddress, &value,
		&fnSig, &intent, &protocol, &rec.Decision, &rec.RiskTier, &rec.RiskScore,
		&reason, &expl, &rec.Timestamp)
	if err != nil {
		return TxRecord{}, err
	}
	rec.Value, err = decimal.NewFromString(value)
	if err != nil {
		return TxRecord{}, fmt.Errorf("store: corrupt value %q: %w", value, err)
	}
	rec.FunctionSig = fnSig.String
	rec.Intent = intent.String
	rec.Protocol = protocol.String
	rec.BlockReason = reason.String
	rec.Explanation = expl.String
	return rec, nil
}

// RegisterAgent inserts a new agent. Duplicate addresses are an error.
func (s *Store) RegisterAgent(ctx context.Context, address, name string, trust int) (model.Agent, error) {
	a := model.Agent{
		Address:      model.NormalizeAddress(address),
		Name:         name,
		TrustScore:   model.ClampTrust(trust),
		Active:       true,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (address, name, trust_score, is_active, registered_at)
		VALUES (?, ?, ?, 1, ?)`,
		a.Address, a.Name, a.TrustScore, a.RegisteredAt)
	if err != nil {
		return model.Agent{}, fmt.Errorf("store: register agent %s: %w", address, err)
	}
	return a, nil
}

// Agent fetches one agent by address.
func (s *Store) Agent(ctx context.Context, address string) (model.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT address, name, trust_score, is_active, tx_count, blocked_count, registered_at
		FROM agents WHERE address = ?`, model.NormalizeAddress(address))
	var a model.Agent
	var active int
	err := row.Scan(&a.Address, &a.Name, &a.TrustScore, &active, &a.TxCount, &a.BlockedCount, &a.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Agent{}, ErrNotFound
	}
	if err != nil {
		return model.Agent{}, fmt.Errorf("store: agent %s: %w", address, err)
	}
	a.Active = active != 0
	return a, nil
}

// Agents lists all registered agents.
func (s *Store) Agents(ctx context.Context) ([]model.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, name, trust_score, is_active, tx_count, blocked_count, registered_at
		FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: agents: %w", err)
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		var a model.Agent
		var active int
		if err := rows.Scan(&a.Address, &a.Name, &a.TrustScore, &active,
			&a.TxCount, &a.BlockedCount, &a.RegisteredAt); err != nil {
			return nil, err
		}
		a.Active = active != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetTrust updates an agent's trust score. Satisfies the outcome guard's
// TrustWriter interface.
func (s *Store) SetTrust(ctx context.Context, address string, trust int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agents SET trust_score = ? WHERE address = ?`,
		model.ClampTrust(trust), model.NormalizeAddress(address))
	if err != nil {
		return fmt.Errorf("store: set trust for %s: %w", address, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive flips an agent's active flag.
func (s *Store) SetActive(ctx context.Context, address string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agents SET is_active = ? WHERE address = ?`,
		boolInt(active), model.NormalizeAddress(address))
	if err != nil {
		return fmt.Errorf("store: set active for %s: %w", address, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TrustScore resolves trust for a registered, active agent. Satisfies the
// engine's TrustSource interface; unknown or deactivated agents return an
// error so the engine falls through to the next source.
func (s *Store) TrustScore(ctx context.Context, address string) (int, error) {
	a, err := s.Agent(ctx, address)
	if err != nil {
		return 0, err
	}
	if !a.Active {
		return 0, fmt.Errorf("store: agent %s is deactivated", address)
	}
	return a.TrustScore, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
