// Package guardrail is the authoritative decision layer. Candidates pass
// the local pre-submission guard first; survivors get the agent's standing
// resolved, the risk scorer run, and the score mapped to a terminal
// decision: APPROVED, BLOCKED, or PENDING manual approval. Spend is only
// recorded for approved transactions, so blocked attempts never consume an
// agent's limit.
package guardrail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/preguard"
	"github.com/aegischain/aegisd/internal/risk"
	"github.com/aegischain/aegisd/internal/threatdb"
)

// DefaultTrustScore is assumed when no trust source can answer. It sits in
// the moderate band so unknown agents pick up a scoring penalty instead of
// a free pass.
const DefaultTrustScore = 50

// TrustSource resolves an agent's trust score. Implementations are tried
// in order; an error means "ask the next source", not "fail the request".
type TrustSource interface {
	TrustScore(ctx context.Context, agent string) (int, error)
}

// Explainer produces the human-readable explanation attached to a verdict.
// It is best effort: on error the engine falls back to a templated summary.
type Explainer interface {
	Explain(ctx context.Context, v model.Verdict, c model.Candidate) (string, error)
}

// Sink receives every verdict after it is decided. Used for audit trails,
// persistence, and alerting. Sink errors are logged, never propagated.
type Sink interface {
	Record(ctx context.Context, c model.Candidate, v model.Verdict) error
}

// Config holds the engine's decision thresholds.
type Config struct {
	// BlockThreshold is the risk score at or above which a transaction
	// is blocked outright.
	BlockThreshold int `yaml:"block_threshold"`
	// HighValueThreshold is the ETH value at or above which a HIGH-tier
	// transaction is parked for manual approval instead of approved.
	HighValueThreshold float64 `yaml:"high_value_threshold_eth"`
	// DailyLimit is the per-agent spend limit fed to the scorer.
	DailyLimit float64 `yaml:"daily_limit_eth"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		BlockThreshold:     75,
		HighValueThreshold: 0.5,
		DailyLimit:         5.0,
	}
}

// Engine evaluates candidates. All dependencies are injected; only State
// is mutated, and only under its own lock.
type Engine struct {
	state     *State
	db        *threatdb.DB
	cfg       Config
	trust     []TrustSource
	explainer Explainer
	sinks     []Sink
	log       *zap.Logger

	highValue decimal.Decimal
	dailyLim  decimal.Decimal
	now       func() time.Time
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithTrustSources sets the ordered trust resolution chain.
func WithTrustSources(sources ...TrustSource) Option {
	return func(e *Engine) { e.trust = sources }
}

// WithExplainer sets the explanation backend.
func WithExplainer(x Explainer) Option {
	return func(e *Engine) { e.explainer = x }
}

// WithSinks registers verdict sinks.
func WithSinks(sinks ...Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, sinks...) }
}

// WithClock overrides the engine clock. Tests use this to pin tx ids
// and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine around the given state, pattern store, and config.
func New(state *State, db *threatdb.DB, cfg Config, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		state:     state,
		db:        db,
		cfg:       cfg,
		log:       log,
		highValue: decimal.NewFromFloat(cfg.HighValueThreshold),
		dailyLim:  decimal.NewFromFloat(cfg.DailyLimit),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State exposes the engine's mutable state for admin operations.
func (e *Engine) State() *State { return e.state }

// Patterns exposes the compiled pattern store.
func (e *Engine) Patterns() *threatdb.DB { return e.db }

// Evaluate runs the full decision pipeline for one candidate: the local
// pre-submission guard first, then the scoring path. A pre-guard rejection
// becomes a BLOCKED verdict without touching trust sources or the explainer.
// Blacklisted targets are the one exception — the blacklist dominates every
// other signal, so they always carry the canonical blacklist verdict. The
// returned error covers malformed input only; a BLOCKED verdict is a
// success.
func (e *Engine) Evaluate(ctx context.Context, c model.Candidate) (model.Verdict, error) {
	if err := c.Validate(); err != nil {
		return model.Verdict{}, err
	}
	if pre := preguard.Evaluate(c, e.db); !pre.Passed && !e.state.IsBlacklisted(c.TargetAddress) {
		return e.reject(ctx, c, pre), nil
	}
	return e.Decide(ctx, c)
}

// Decide runs the scoring path only: trust resolution, risk scoring, and
// the decision precedence. Callers normally go through Evaluate; Decide is
// for contexts where the pre-submission guard already ran.
func (e *Engine) Decide(ctx context.Context, c model.Candidate) (model.Verdict, error) {
	if err := c.Validate(); err != nil {
		return model.Verdict{}, err
	}

	ts := e.now().UTC()
	txID := e.txID(c, ts)

	trust := e.resolveTrust(ctx, c.AgentAddress)
	spent := e.state.Spent(c.AgentAddress)
	isBlacklisted := e.state.IsBlacklisted(c.TargetAddress)
	isWhitelisted := e.state.IsWhitelisted(c.TargetAddress)

	assessment := risk.Score(risk.Input{
		Candidate:     c,
		TrustScore:    trust,
		IsWhitelisted: isWhitelisted,
		IsBlacklisted: isBlacklisted,
		DailySpent:    spent,
		DailyLimit:    e.dailyLim,
	}, e.db)

	v := model.Verdict{
		TxID:         txID,
		RiskScore:    assessment.Score,
		RiskTier:     assessment.Tier,
		ChecksPassed: assessment.Passed,
		ChecksFailed: assessment.Failed,
		Timestamp:    ts.Format(time.RFC3339Nano),
	}

	// Decision precedence: blacklist, then score threshold, then the
	// high-risk/high-value approval gate.
	switch {
	case isBlacklisted:
		v.Decision = model.Blocked
		v.BlockReason = "Target address is blacklisted"
	case assessment.Score >= e.cfg.BlockThreshold:
		v.Decision = model.Blocked
		v.BlockReason = fmt.Sprintf("Risk score %d/100 exceeds threshold. Issues: %s",
			assessment.Score, strings.Join(assessment.Failed, "; "))
	case assessment.Tier == model.TierHigh && c.Value.GreaterThanOrEqual(e.highValue):
		v.Decision = model.Pending
		v.BlockReason = "High risk + high value requires manual approval"
	default:
		v.Decision = model.Approved
		e.state.AddSpend(c.AgentAddress, c.Value)
	}

	v.Explanation = e.explain(ctx, v, c)
	e.emit(ctx, c, v)
	return v, nil
}

// reject converts a pre-guard refusal into a terminal verdict. Everything
// here stays local: no trust resolution and no explainer call.
func (e *Engine) reject(ctx context.Context, c model.Candidate, pre preguard.Result) model.Verdict {
	ts := e.now().UTC()
	score := 75
	if pre.RiskTier == model.TierCritical {
		score = 100
	}
	v := model.Verdict{
		TxID:         e.txID(c, ts),
		Decision:     model.Blocked,
		RiskScore:    score,
		RiskTier:     pre.RiskTier,
		ChecksFailed: pre.Flags,
		BlockReason:  "Pre-submission checks failed: " + strings.Join(pre.Flags, "; "),
		Timestamp:    ts.Format(time.RFC3339Nano),
	}
	v.Explanation = fmt.Sprintf("Transaction %s with risk score %d/100. %s",
		v.Decision, v.RiskScore, strings.Join(pre.Flags, "; "))
	e.emit(ctx, c, v)
	return v
}

// emit logs the verdict and fans it out to the registered sinks.
func (e *Engine) emit(ctx context.Context, c model.Candidate, v model.Verdict) {
	e.log.Info("verdict",
		zap.String("tx_id", v.TxID),
		zap.String("decision", string(v.Decision)),
		zap.Int("risk_score", v.RiskScore),
		zap.String("risk_level", string(v.RiskTier)),
		zap.String("agent", c.AgentAddress),
		zap.String("target", c.TargetAddress),
	)
	for _, s := range e.sinks {
		if err := s.Record(ctx, c, v); err != nil {
			e.log.Warn("verdict sink failed", zap.String("tx_id", v.TxID), zap.Error(err))
		}
	}
}

// resolveTrust walks the trust chain and falls back to DefaultTrustScore.
func (e *Engine) resolveTrust(ctx context.Context, agent string) int {
	for _, src := range e.trust {
		score, err := src.TrustScore(ctx, agent)
		if err == nil {
			return model.ClampTrust(score)
		}
		e.log.Debug("trust source miss", zap.String("agent", agent), zap.Error(err))
	}
	return DefaultTrustScore
}

func (e *Engine) explain(ctx context.Context, v model.Verdict, c model.Candidate) string {
	if e.explainer != nil {
		if text, err := e.explainer.Explain(ctx, v, c); err == nil && text != "" {
			return text
		} else if err != nil {
			e.log.Warn("explainer failed", zap.String("tx_id", v.TxID), zap.Error(err))
		}
	}
	issues := "All checks passed."
	if len(v.ChecksFailed) > 0 {
		issues = strings.Join(v.ChecksFailed, "; ")
	}
	return fmt.Sprintf("Transaction %s with risk score %d/100. %s", v.Decision, v.RiskScore, issues)
}

// txID derives a deterministic id from the candidate and timestamp.
func (e *Engine) txID(c model.Candidate, ts time.Time) string {
	data := c.AgentAddress + c.TargetAddress + c.Value.String() + ts.Format(time.RFC3339Nano)
	sum := sha256.Sum256([]byte(data))
	return "0x" + hex.EncodeToString(sum[:])[:40]
}
