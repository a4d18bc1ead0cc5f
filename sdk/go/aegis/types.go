package aegis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aegischain/aegisd/internal/model"
)

// Decision is the guardrail's verdict for a transaction.
type Decision string

const (
	Approved Decision = Decision(model.Approved)
	Blocked  Decision = Decision(model.Blocked)
	Pending  Decision = Decision(model.Pending)
)

// Tx describes a transaction an agent intends to execute.
type Tx struct {
	AgentAddress  string  `json:"agent_address"`
	TargetAddress string  `json:"target_address"`
	ValueETH      float64 `json:"value_eth"`
	FunctionSig   string  `json:"function_sig,omitempty"`
	Intent        string  `json:"intent,omitempty"`
	Protocol      string  `json:"protocol,omitempty"`
}

// Verdict is the authoritative evaluation result.
type Verdict struct {
	TxID         string   `json:"tx_id"`
	Decision     Decision `json:"decision"`
	RiskLevel    string   `json:"risk_level"`
	RiskScore    int      `json:"risk_score"`
	BlockReason  string   `json:"block_reason,omitempty"`
	Explanation  string   `json:"ai_explanation"`
	ChecksPassed []string `json:"checks_passed"`
	ChecksFailed []string `json:"checks_failed"`
}

// Allowed returns true if the transaction may execute.
func (v Verdict) Allowed() bool { return v.Decision == Approved }

// PrecheckResult is the outcome of the local checks.
type PrecheckResult struct {
	Passed         bool     `json:"passed"`
	RiskLevel      string   `json:"risk_level"`
	Flags          []string `json:"flags"`
	Warnings       []string `json:"warnings"`
	Recommendation string   `json:"recommendation"`
}

// OutcomeReport describes a settled transaction for trust adjustment.
// Leave CurrentTrust at zero to have the daemon resolve the agent's stored
// score; values above zero are reported as-is.
type OutcomeReport struct {
	TxID         string   `json:"tx_id"`
	AgentAddress string   `json:"agent_address"`
	Tx           Tx       `json:"-"`
	Decision     Decision `json:"decision"`
	Explanation  string   `json:"ai_explanation,omitempty"`
	CurrentTrust int      `json:"current_trust_score,omitempty"`
}

// OutcomeResult is the clamped trust adjustment.
type OutcomeResult struct {
	MatchesIntent bool     `json:"outcome_matches_intent"`
	Anomalies     []string `json:"anomalies"`
	Adjustment    int      `json:"trust_score_adjustment"`
	Lesson        string   `json:"lesson_learned"`
	NewTrust      int      `json:"new_trust_score"`
}

// BlockedError is returned when the guardrail refuses a transaction.
type BlockedError struct {
	Tx      Tx
	Verdict Verdict
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("aegis blocked (%s): %s", e.Verdict.Decision, e.Verdict.BlockReason)
}

// candidate maps an SDK Tx to the internal model.
func (t Tx) candidate() model.Candidate {
	return model.Candidate{
		AgentAddress:  t.AgentAddress,
		TargetAddress: t.TargetAddress,
		Value:         decimal.NewFromFloat(t.ValueETH),
		FunctionSig:   t.FunctionSig,
		Intent:        t.Intent,
		Protocol:      t.Protocol,
	}
}
