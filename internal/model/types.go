package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decision is the authoritative verdict for a candidate transaction.
type Decision string

const (
	Approved Decision = "APPROVED"
	Blocked  Decision = "BLOCKED"
	Pending  Decision = "PENDING"
)

// RiskTier is the coarse risk bucket derived from the numeric score.
type RiskTier string

const (
	TierLow      RiskTier = "LOW"
	TierMedium   RiskTier = "MEDIUM"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

// Tier cut points. Score >= CutCritical maps to CRITICAL and so on down.
const (
	CutCritical = 75
	CutHigh     = 50
	CutMedium   = 25
)

// TierForScore maps a clamped risk score to its tier.
// The mapping is monotone: a higher score never yields a lower tier.
func TierForScore(score int) RiskTier {
	switch {
	case score >= CutCritical:
		return TierCritical
	case score >= CutHigh:
		return TierHigh
	case score >= CutMedium:
		return TierMedium
	default:
		return TierLow
	}
}

// TierRank maps tiers to comparable integers for escalation checks.
var TierRank = map[RiskTier]int{
	TierLow:      0,
	TierMedium:   1,
	TierHigh:     2,
	TierCritical: 3,
}

// Candidate is a not-yet-approved transaction submitted for evaluation.
// Immutable once constructed; one instance per evaluation.
type Candidate struct {
	AgentAddress  string          `json:"agent_address"`
	TargetAddress string          `json:"target_address"`
	Value         decimal.Decimal `json:"value_eth"`
	FunctionSig   string          `json:"function_sig,omitempty"`
	Intent        string          `json:"intent,omitempty"`
	Protocol      string          `json:"protocol,omitempty"`
}

// Validate rejects malformed candidates before they enter the pipeline.
func (c Candidate) Validate() error {
	if c.AgentAddress == "" {
		return fmt.Errorf("candidate: agent_address is required")
	}
	if c.TargetAddress == "" {
		return fmt.Errorf("candidate: target_address is required")
	}
	if c.Value.IsNegative() {
		return fmt.Errorf("candidate: value_eth must be non-negative, got %s", c.Value)
	}
	return nil
}

// Verdict is the authoritative outcome of one evaluation.
// Produced exactly once per candidate; immutable after creation.
type Verdict struct {
	TxID         string   `json:"tx_id"`
	Decision     Decision `json:"decision"`
	RiskTier     RiskTier `json:"risk_level"`
	RiskScore    int      `json:"risk_score"`
	BlockReason  string   `json:"block_reason,omitempty"`
	Explanation  string   `json:"ai_explanation"`
	ChecksPassed []string `json:"checks_passed"`
	ChecksFailed []string `json:"checks_failed"`
	Timestamp    string   `json:"timestamp"`
}

// Agent is an autonomous caller identified by a stable address.
// TrustScore is mutated only by the outcome guard and stays in [0,100].
type Agent struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	TrustScore   int    `json:"trust_score"`
	Active       bool   `json:"is_active"`
	TxCount      int    `json:"tx_count"`
	BlockedCount int    `json:"blocked_count"`
	RegisteredAt string `json:"registered_at"`
}

// Mismatch is one inconsistency between stated intent and actual parameters.
type Mismatch struct {
	Kind   string // "address" or "amount"
	Detail string
}

func (m Mismatch) String() string { return m.Detail }

// ZeroAddress is the burn address; sending value here is unrecoverable.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lower-cases an address for case-insensitive comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ClampScore bounds a risk score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ClampTrust bounds a trust score to [0,100].
func ClampTrust(trust int) int {
	if trust < 0 {
		return 0
	}
	if trust > 100 {
		return 100
	}
	return trust
}
