package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"github.com/aegischain/aegisd/internal/guardrail"
	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/outcome"
	"github.com/aegischain/aegisd/internal/preguard"
)

// --- Input/Output types ---

// TxInput describes a candidate transaction.
type TxInput struct {
	AgentAddress  string  `json:"agent_address" jsonschema:"address of the submitting agent"`
	TargetAddress string  `json:"target_address" jsonschema:"destination contract or wallet"`
	ValueETH      float64 `json:"value_eth" jsonschema:"transaction value in ETH"`
	FunctionSig   string  `json:"function_sig,omitempty" jsonschema:"4-byte function selector, e.g. 0x2e1a7d4d"`
	Intent        string  `json:"intent,omitempty" jsonschema:"plain-English statement of what this transaction does"`
	Protocol      string  `json:"protocol,omitempty" jsonschema:"protocol name, e.g. Uniswap"`
}

func (in TxInput) candidate() model.Candidate {
	return model.Candidate{
		AgentAddress:  in.AgentAddress,
		TargetAddress: in.TargetAddress,
		Value:         decimal.NewFromFloat(in.ValueETH),
		FunctionSig:   in.FunctionSig,
		Intent:        in.Intent,
		Protocol:      in.Protocol,
	}
}

// ValidateOutput is the verdict returned to the agent.
type ValidateOutput struct {
	TxID         string   `json:"tx_id"`
	Decision     string   `json:"decision"`
	RiskLevel    string   `json:"risk_level"`
	RiskScore    int      `json:"risk_score"`
	BlockReason  string   `json:"block_reason,omitempty"`
	Explanation  string   `json:"ai_explanation"`
	ChecksPassed []string `json:"checks_passed"`
	ChecksFailed []string `json:"checks_failed"`
}

// PrecheckOutput is the local guard result.
type PrecheckOutput struct {
	Passed         bool     `json:"passed"`
	RiskLevel      string   `json:"risk_level"`
	Flags          []string `json:"flags"`
	Warnings       []string `json:"warnings"`
	Recommendation string   `json:"recommendation"`
}

// OutcomeInput reports a settled transaction.
type OutcomeInput struct {
	TxID          string  `json:"tx_id" jsonschema:"id returned by aegis_validate"`
	AgentAddress  string  `json:"agent_address" jsonschema:"address of the agent that executed the transaction"`
	TargetAddress string  `json:"target_address,omitempty"`
	ValueETH      float64 `json:"value_eth,omitempty"`
	Intent        string  `json:"intent,omitempty" jsonschema:"the intent originally stated"`
	Decision      string  `json:"decision" jsonschema:"the decision the guardrail gave (APPROVED/BLOCKED/PENDING)"`
	Explanation   string  `json:"ai_explanation,omitempty"`
	CurrentTrust  *int    `json:"current_trust_score,omitempty" jsonschema:"agent's trust before this outcome; looked up when omitted"`
}

// OutcomeOutput is the clamped trust adjustment.
type OutcomeOutput struct {
	MatchesIntent bool     `json:"outcome_matches_intent"`
	Anomalies     []string `json:"anomalies"`
	Adjustment    int      `json:"trust_score_adjustment"`
	Lesson        string   `json:"lesson_learned"`
	NewTrust      int      `json:"new_trust_score"`
}

// PendingInput is empty — no parameters needed.
type PendingInput struct{}

// PendingOutput lists parked transactions.
type PendingOutput struct {
	Tickets []PendingItem `json:"tickets"`
}

// PendingItem describes one parked transaction.
type PendingItem struct {
	TxID      string `json:"tx_id"`
	Status    string `json:"status"`
	Agent     string `json:"agent_address"`
	Target    string `json:"target_address"`
	ValueETH  string `json:"value_eth"`
	RiskScore int    `json:"risk_score"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// ApproveInput resolves a parked transaction.
type ApproveInput struct {
	TxID     string `json:"tx_id" jsonschema:"id of the parked transaction"`
	Deny     bool   `json:"deny,omitempty" jsonschema:"set true to deny instead of approve"`
	Duration string `json:"duration,omitempty" jsonschema:"approval validity (e.g. 5m), omit for one-time approval"`
}

// ApproveOutput confirms the resolution.
type ApproveOutput struct {
	TxID     string `json:"tx_id"`
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
}

// --- Handlers ---

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input TxInput) (*mcpsdk.CallToolResult, ValidateOutput, error) {
	v, err := s.deps.Engine.Evaluate(ctx, input.candidate())
	if err != nil {
		return nil, ValidateOutput{}, err
	}

	out := ValidateOutput{
		TxID:         v.TxID,
		Decision:     string(v.Decision),
		RiskLevel:    string(v.RiskTier),
		RiskScore:    v.RiskScore,
		BlockReason:  v.BlockReason,
		Explanation:  v.Explanation,
		ChecksPassed: v.ChecksPassed,
		ChecksFailed: v.ChecksFailed,
	}

	// A refusal is surfaced as a tool error so the agent treats it as a
	// hard stop rather than a value to reinterpret.
	if v.Decision != model.Approved {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handlePrecheck(ctx context.Context, req *mcpsdk.CallToolRequest, input TxInput) (*mcpsdk.CallToolResult, PrecheckOutput, error) {
	c := input.candidate()
	if err := c.Validate(); err != nil {
		return nil, PrecheckOutput{}, err
	}

	r := preguard.Evaluate(c, s.deps.DB)
	out := PrecheckOutput{
		Passed:         r.Passed,
		RiskLevel:      string(r.RiskTier),
		Flags:          r.Flags,
		Warnings:       r.Warnings,
		Recommendation: r.Recommendation,
	}
	if !r.Passed {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleOutcome(ctx context.Context, req *mcpsdk.CallToolRequest, input OutcomeInput) (*mcpsdk.CallToolResult, OutcomeOutput, error) {
	if s.deps.Outcome == nil {
		return nil, OutcomeOutput{}, fmt.Errorf("outcome analysis is not configured")
	}

	trust := guardrail.DefaultTrustScore
	if input.CurrentTrust != nil {
		trust = *input.CurrentTrust
	} else if s.deps.Store != nil {
		if resolved, err := s.deps.Store.TrustScore(ctx, input.AgentAddress); err == nil {
			trust = resolved
		}
	}

	res := s.deps.Outcome.Review(ctx, outcome.Report{
		TxID:          input.TxID,
		AgentAddress:  input.AgentAddress,
		TargetAddress: input.TargetAddress,
		Value:         decimal.NewFromFloat(input.ValueETH),
		Intent:        input.Intent,
		Decision:      model.Decision(input.Decision),
		Explanation:   input.Explanation,
		CurrentTrust:  trust,
	})

	return nil, OutcomeOutput{
		MatchesIntent: res.MatchesIntent,
		Anomalies:     res.Anomalies,
		Adjustment:    res.Adjustment,
		Lesson:        res.Lesson,
		NewTrust:      res.NewTrust,
	}, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	list, err := s.deps.Approvals.List()
	if err != nil {
		return nil, PendingOutput{}, err
	}

	items := make([]PendingItem, len(list))
	for i, t := range list {
		items[i] = PendingItem{
			TxID:      t.TxID,
			Status:    string(t.Status),
			Agent:     t.Agent,
			Target:    t.Target,
			ValueETH:  t.Value,
			RiskScore: t.RiskScore,
			Reason:    t.Reason,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, PendingOutput{Tickets: items}, nil
}

func (s *Server) handleApprove(ctx context.Context, req *mcpsdk.CallToolRequest, input ApproveInput) (*mcpsdk.CallToolResult, ApproveOutput, error) {
	if input.Deny {
		if err := s.deps.Approvals.Deny(input.TxID); err != nil {
			return nil, ApproveOutput{}, err
		}
		return nil, ApproveOutput{TxID: input.TxID, Status: "denied"}, nil
	}

	var duration time.Duration
	if input.Duration != "" {
		var err error
		duration, err = time.ParseDuration(input.Duration)
		if err != nil {
			return nil, ApproveOutput{}, fmt.Errorf("invalid duration %q: %w", input.Duration, err)
		}
	}

	if err := s.deps.Approvals.Approve(input.TxID, duration); err != nil {
		return nil, ApproveOutput{}, err
	}

	out := ApproveOutput{TxID: input.TxID, Status: "approved"}
	if duration > 0 {
		out.Duration = duration.String()
	}
	return nil, out, nil
}
