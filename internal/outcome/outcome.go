// Package outcome is the post-transaction guard: it reviews what actually
// happened against what the agent said it would do, and adjusts the agent's
// trust score. Adjustments are advisory-by-construction — a single outcome
// can cost an agent at most 20 trust points and earn it at most 5, so trust
// is slow to build and quick to lose, but never destroyed in one step.
package outcome

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/model"
)

// Adjustment clamp bounds.
const (
	MaxPenalty = -20
	MaxReward  = 5
)

// TrustCollapseFloor is the score below which an agent's trust is considered
// collapsed. Matches the critically-low band of the risk scorer.
const TrustCollapseFloor = 20

// Report describes a settled transaction for review.
type Report struct {
	TxID          string          `json:"tx_id"`
	AgentAddress  string          `json:"agent_address"`
	TargetAddress string          `json:"target_address"`
	Value         decimal.Decimal `json:"value_eth"`
	Intent        string          `json:"intent,omitempty"`
	Decision      model.Decision  `json:"decision"`
	Explanation   string          `json:"ai_explanation,omitempty"`
	CurrentTrust  int             `json:"current_trust_score"`
}

// Judgment is the analyzer's raw opinion, before clamping.
type Judgment struct {
	MatchesIntent bool     `json:"outcome_matches_intent"`
	Anomalies     []string `json:"anomalies"`
	Adjustment    int      `json:"trust_score_adjustment"`
	Lesson        string   `json:"lesson_learned"`
}

// Result is the guard's final, clamped assessment.
type Result struct {
	MatchesIntent bool     `json:"outcome_matches_intent"`
	Anomalies     []string `json:"anomalies"`
	Adjustment    int      `json:"trust_score_adjustment"`
	Lesson        string   `json:"lesson_learned"`
	NewTrust      int      `json:"new_trust_score"`
}

// Analyzer reviews a settled transaction. Errors are tolerated: the guard
// substitutes a neutral judgment so an analyzer outage never moves trust.
type Analyzer interface {
	AnalyzeOutcome(ctx context.Context, r Report) (Judgment, error)
}

// TrustWriter persists the adjusted trust score. Optional.
type TrustWriter interface {
	SetTrust(ctx context.Context, agent string, trust int) error
}

// Alerter is notified when an agent's trust crosses the collapse floor.
// Optional; implementations must tolerate concurrent calls.
type Alerter interface {
	TrustCollapse(agent string, oldTrust, newTrust int)
}

// Guard applies outcome analysis with bounded trust movement.
type Guard struct {
	analyzer Analyzer
	trust    TrustWriter
	alerts   Alerter
	log      *zap.Logger
}

// New builds a Guard. analyzer may be nil, in which case every review is
// neutral. trust may be nil to skip persistence.
func New(analyzer Analyzer, trust TrustWriter, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{analyzer: analyzer, trust: trust, log: log}
}

// SetAlerter wires collapse notifications. A nil alerter disables them.
func (g *Guard) SetAlerter(a Alerter) { g.alerts = a }

// Review analyzes the report and returns the clamped result. The new trust
// score is persisted when a TrustWriter is configured; persistence errors
// are logged and the result is still returned.
func (g *Guard) Review(ctx context.Context, r Report) Result {
	j := g.judge(ctx, r)

	adj := j.Adjustment
	if adj < MaxPenalty {
		adj = MaxPenalty
	}
	if adj > MaxReward {
		adj = MaxReward
	}

	res := Result{
		MatchesIntent: j.MatchesIntent,
		Anomalies:     j.Anomalies,
		Adjustment:    adj,
		Lesson:        j.Lesson,
		NewTrust:      model.ClampTrust(r.CurrentTrust + adj),
	}

	g.log.Info("outcome reviewed",
		zap.String("tx_id", r.TxID),
		zap.String("agent", r.AgentAddress),
		zap.Bool("matches_intent", res.MatchesIntent),
		zap.Int("adjustment", res.Adjustment),
		zap.Int("new_trust", res.NewTrust),
	)

	if g.trust != nil && res.Adjustment != 0 {
		if err := g.trust.SetTrust(ctx, r.AgentAddress, res.NewTrust); err != nil {
			g.log.Warn("trust persistence failed",
				zap.String("agent", r.AgentAddress), zap.Error(err))
		}
	}

	if g.alerts != nil && r.CurrentTrust >= TrustCollapseFloor && res.NewTrust < TrustCollapseFloor {
		g.alerts.TrustCollapse(r.AgentAddress, r.CurrentTrust, res.NewTrust)
	}
	return res
}

// judge asks the analyzer, substituting a neutral judgment on any failure.
func (g *Guard) judge(ctx context.Context, r Report) Judgment {
	neutral := Judgment{
		MatchesIntent: r.Decision == model.Approved,
		Adjustment:    0,
		Lesson:        "Could not analyze outcome",
	}
	if g.analyzer == nil {
		return neutral
	}
	j, err := g.analyzer.AnalyzeOutcome(ctx, r)
	if err != nil {
		g.log.Warn("outcome analyzer failed", zap.String("tx_id", r.TxID), zap.Error(err))
		return neutral
	}
	return j
}
