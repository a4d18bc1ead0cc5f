package approval

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aegischain/aegisd/internal/model"
)

const txID = "0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b"

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func ticket() Ticket {
	return Ticket{
		TxID:      txID,
		Agent:     "0x00000000000000000000000000000000000000a1",
		Target:    "0x1111111111111111111111111111111111111111",
		Value:     "0.7",
		RiskScore: 55,
		RiskTier:  model.TierHigh,
		Reason:    "High risk + high value requires manual approval",
	}
}

func TestRequestAndCheck(t *testing.T) {
	s := newStore(t)
	if err := s.Request(ticket()); err != nil {
		t.Fatal(err)
	}
	status, err := s.Check(txID)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusPending {
		t.Errorf("status = %s", status)
	}

	// Re-requesting the same tx is a no-op, not an error.
	if err := s.Request(ticket()); err != nil {
		t.Errorf("duplicate request: %v", err)
	}
}

func TestApproveAndConsume(t *testing.T) {
	s := newStore(t)
	s.Request(ticket())

	if err := s.Approve(txID, 0); err != nil {
		t.Fatal(err)
	}
	if status, _ := s.Check(txID); status != StatusApproved {
		t.Errorf("status = %s", status)
	}

	if err := s.Consume(txID); err != nil {
		t.Fatal(err)
	}
	if err := s.Consume(txID); err == nil {
		t.Error("double consume accepted")
	}
}

func TestApproveWithExpiry(t *testing.T) {
	s := newStore(t)
	s.Request(ticket())

	if err := s.Approve(txID, -time.Minute); err != nil {
		t.Fatal(err)
	}
	status, err := s.Check(txID)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusExpired {
		t.Errorf("status = %s, want expired", status)
	}
}

func TestDeny(t *testing.T) {
	s := newStore(t)
	s.Request(ticket())
	if err := s.Deny(txID); err != nil {
		t.Fatal(err)
	}
	if status, _ := s.Check(txID); status != StatusDenied {
		t.Errorf("status = %s", status)
	}
}

func TestUnknownTicket(t *testing.T) {
	s := newStore(t)
	if _, err := s.Check(txID); err == nil {
		t.Error("missing ticket checked clean")
	}
	if err := s.Approve(txID, 0); err == nil {
		t.Error("missing ticket approved")
	}
}

func TestKeyValidation(t *testing.T) {
	s := newStore(t)
	bad := []string{"", "../escape", "a/b", "tx id with spaces"}
	for _, key := range bad {
		if err := s.Request(Ticket{TxID: key}); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}

func TestRecordParksOnlyPending(t *testing.T) {
	s := newStore(t)
	c := model.Candidate{
		AgentAddress:  "0x00000000000000000000000000000000000000A1",
		TargetAddress: "0x1111111111111111111111111111111111111111",
		Value:         decimal.NewFromFloat(0.7),
	}

	v := model.Verdict{TxID: txID, Decision: model.Pending, RiskScore: 55, RiskTier: model.TierHigh,
		BlockReason: "High risk + high value requires manual approval"}
	if err := s.Record(context.Background(), c, v); err != nil {
		t.Fatal(err)
	}

	approved := model.Verdict{TxID: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Decision: model.Approved}
	if err := s.Record(context.Background(), c, approved); err != nil {
		t.Fatal(err)
	}

	tickets, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 1 || tickets[0].TxID != txID {
		t.Errorf("tickets = %+v", tickets)
	}
	if tickets[0].Agent != "0x00000000000000000000000000000000000000a1" {
		t.Errorf("agent not normalized: %s", tickets[0].Agent)
	}
}

func TestCleanup(t *testing.T) {
	s := newStore(t)
	s.Request(ticket())
	if err := s.Cleanup(); err != nil {
		t.Fatal(err)
	}
	tickets, _ := s.List()
	if len(tickets) != 0 {
		t.Errorf("tickets after cleanup = %d", len(tickets))
	}
}
