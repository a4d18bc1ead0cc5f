package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/outcome"
)

const explainSystem = "You are AegisChain, an AI security guard for blockchain transactions."

const explainTemplate = `Analyze this transaction and give a SHORT (2-3 sentence) plain English explanation.

Transaction Details:
- Agent: %s...
- Target: %s...
- Value: %s ETH
- Intent: %s
- Protocol: %s
- Risk Score: %d/100
- Risk Level: %s
- Decision: %s
- Issues Found: %s

Respond in 2-3 sentences explaining WHY this decision was made in simple terms.
Be direct, technical but understandable. Start with the decision.`

// Explain asks the model for a short plain-English rationale for a verdict.
// Satisfies the engine's Explainer interface.
func (c *Client) Explain(ctx context.Context, v model.Verdict, cand model.Candidate) (string, error) {
	issues := "None"
	if len(v.ChecksFailed) > 0 {
		issues = strings.Join(v.ChecksFailed, ", ")
	}
	intentText := cand.Intent
	if intentText == "" {
		intentText = "Not specified"
	}
	protocol := cand.Protocol
	if protocol == "" {
		protocol = "Unknown"
	}
	prompt := fmt.Sprintf(explainTemplate,
		short(cand.AgentAddress), short(cand.TargetAddress), cand.Value,
		intentText, protocol,
		v.RiskScore, v.RiskTier, v.Decision, issues)

	return c.Chat(ctx, explainSystem, prompt, 150)
}

const outcomeSystem = "You are a blockchain transaction outcome analyzer. Always respond in valid JSON only."

const outcomeTemplate = `Review if a completed transaction achieved its intended outcome.
Original intent: %q
Transaction sent to: %s
Value sent: %s ETH
Decision was: %s
AI explanation was: %q

Did everything go as expected?
Respond ONLY with JSON:
{
  "outcome_matches_intent": true/false,
  "anomalies": ["list any unexpected outcomes"],
  "trust_score_adjustment": -10 to +5,
  "lesson_learned": "one sentence for the agent to remember"
}`

// AnalyzeOutcome reviews a settled transaction. Satisfies the outcome
// guard's Analyzer interface.
func (c *Client) AnalyzeOutcome(ctx context.Context, r outcome.Report) (outcome.Judgment, error) {
	intentText := r.Intent
	if intentText == "" {
		intentText = "No intent specified"
	}
	prompt := fmt.Sprintf(outcomeTemplate,
		intentText, r.TargetAddress, r.Value, r.Decision, r.Explanation)

	raw, err := c.Chat(ctx, outcomeSystem, prompt, 300)
	if err != nil {
		return outcome.Judgment{}, err
	}

	var j outcome.Judgment
	if err := unmarshalLLMJSON(raw, &j); err != nil {
		return outcome.Judgment{}, fmt.Errorf("reasoner: unparseable judgment: %w", err)
	}
	return j, nil
}

// unmarshalLLMJSON parses model output that may be wrapped in markdown
// fences or slightly malformed. Fence stripping first, then a repair pass.
func unmarshalLLMJSON(raw string, v any) error {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	if err := json.Unmarshal([]byte(clean), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(clean)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), v)
}

func short(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10]
}
