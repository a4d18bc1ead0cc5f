// Package approval holds transactions parked for manual review. Each
// PENDING verdict becomes one JSON file keyed by tx id, so an operator can
// inspect, approve, or deny it with nothing more than the CLI — or a text
// editor in an emergency.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aegischain/aegisd/internal/model"
)

// validKey matches alphanumeric, dash, underscore, and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateKey rejects keys that could cause path traversal.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("key contains invalid characters: only alphanumeric, dash, underscore, and dot are allowed")
	}
	return nil
}

// Status represents the state of a parked transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Ticket is one transaction awaiting manual review.
type Ticket struct {
	TxID       string         `json:"tx_id"`
	Status     Status         `json:"status"`
	Agent      string         `json:"agent_address"`
	Target     string         `json:"target_address"`
	Value      string         `json:"value_eth"`
	RiskScore  int            `json:"risk_score"`
	RiskTier   model.RiskTier `json:"risk_level"`
	Reason     string         `json:"reason"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// Store manages ticket files on disk.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store backed by the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create approval directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the default ticket directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "aegisd-pending")
	}
	return filepath.Join(home, ".aegisd", "pending")
}

// Record parks PENDING verdicts as tickets and ignores everything else.
// Satisfies the engine's Sink interface.
func (s *Store) Record(ctx context.Context, c model.Candidate, v model.Verdict) error {
	if v.Decision != model.Pending {
		return nil
	}
	return s.Request(Ticket{
		TxID:      v.TxID,
		Agent:     model.NormalizeAddress(c.AgentAddress),
		Target:    model.NormalizeAddress(c.TargetAddress),
		Value:     c.Value.String(),
		RiskScore: v.RiskScore,
		RiskTier:  v.RiskTier,
		Reason:    v.BlockReason,
	})
}

// Request creates a pending ticket file. No-op if it already exists.
func (s *Store) Request(t Ticket) error {
	if err := validateKey(t.TxID); err != nil {
		return fmt.Errorf("invalid ticket key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(t.TxID)
	if _, err := os.Stat(path); err == nil {
		return nil // already parked
	}

	t.Status = StatusPending
	t.CreatedAt = time.Now().UTC()
	return s.writeAtomic(path, t)
}

// Approve marks a ticket as approved. If duration > 0, sets expiration.
// If duration == 0, the approval is one-time (consumed on first use).
func (s *Store) Approve(txID string, duration time.Duration) error {
	if err := validateKey(txID); err != nil {
		return fmt.Errorf("invalid ticket key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(txID)
	if err != nil {
		return fmt.Errorf("ticket %q not found: %w", txID, err)
	}

	t.Status = StatusApproved
	now := time.Now().UTC()
	t.ResolvedAt = &now
	if duration > 0 {
		exp := now.Add(duration)
		t.ExpiresAt = &exp
	}
	return s.writeAtomic(s.path(txID), *t)
}

// Deny marks a ticket as denied.
func (s *Store) Deny(txID string) error {
	if err := validateKey(txID); err != nil {
		return fmt.Errorf("invalid ticket key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(txID)
	if err != nil {
		return fmt.Errorf("ticket %q not found: %w", txID, err)
	}

	t.Status = StatusDenied
	now := time.Now().UTC()
	t.ResolvedAt = &now
	return s.writeAtomic(s.path(txID), *t)
}

// Check returns the current status of a ticket.
// Returns StatusExpired if an approved ticket passed its deadline.
func (s *Store) Check(txID string) (Status, error) {
	if err := validateKey(txID); err != nil {
		return "", fmt.Errorf("invalid ticket key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(txID)
	if err != nil {
		return "", fmt.Errorf("ticket %q not found", txID)
	}

	if t.Status == StatusApproved && t.ExpiresAt != nil && time.Now().UTC().After(*t.ExpiresAt) {
		t.Status = StatusExpired
		s.writeAtomic(s.path(txID), *t)
		return StatusExpired, nil
	}
	return t.Status, nil
}

// Consume marks a one-time approval as consumed.
func (s *Store) Consume(txID string) error {
	if err := validateKey(txID); err != nil {
		return fmt.Errorf("invalid ticket key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(txID)
	if err != nil {
		return fmt.Errorf("ticket %q not found: %w", txID, err)
	}

	if t.Status == StatusConsumed {
		return fmt.Errorf("ticket %q already consumed", txID)
	}

	t.Status = StatusConsumed
	now := time.Now().UTC()
	t.ResolvedAt = &now
	return s.writeAtomic(s.path(txID), *t)
}

// List returns all tickets in the store.
func (s *Store) List() ([]Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var tickets []Ticket
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".json")
		t, err := s.read(key)
		if err != nil {
			continue
		}
		tickets = append(tickets, *t)
	}
	return tickets, nil
}

// Cleanup removes all ticket files in the store.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) read(key string) (*Ticket, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}
	var t Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) writeAtomic(path string, t Ticket) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
