// Package risk computes a deterministic, explainable risk score for a
// candidate transaction. This is NOT anomaly detection — it is cumulative
// scoring based on transaction semantics and agent standing. Every check
// appends a human-readable reason to the passed or failed list; the
// itemization is a first-class output required for explainability.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aegischain/aegisd/internal/intent"
	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/threatdb"
)

// Fixed short-circuit scores.
const (
	scoreBlacklisted  = 100
	scoreUntrusted    = 95
	trustFloorScore   = 20 // trust below this short-circuits to CRITICAL
	trustHighBand     = 80
	trustModerateBand = 50
)

// Input carries everything the scorer needs. The scorer itself performs
// no I/O and holds no state; given equal inputs it returns equal outputs.
type Input struct {
	Candidate     model.Candidate
	TrustScore    int
	IsWhitelisted bool
	IsBlacklisted bool
	DailySpent    decimal.Decimal
	DailyLimit    decimal.Decimal
}

// Assessment is the scorer's itemized result.
type Assessment struct {
	Score  int
	Tier   model.RiskTier
	Passed []string
	Failed []string
}

// Score evaluates the candidate. Check order is fixed: later checks
// (whitelist, protocol) partially offset earlier penalties, so reordering
// would change results.
func Score(in Input, db *threatdb.DB) Assessment {
	c := in.Candidate
	score := 0
	var passed, failed []string

	// Critical short-circuits.
	if in.IsBlacklisted {
		return Assessment{
			Score:  scoreBlacklisted,
			Tier:   model.TierCritical,
			Failed: []string{"Target address is BLACKLISTED"},
		}
	}
	if in.TrustScore < trustFloorScore {
		return Assessment{
			Score:  scoreUntrusted,
			Tier:   model.TierCritical,
			Failed: []string{"Agent trust score critically low"},
		}
	}

	// Value bands.
	critical := db.CriticalThreshold()
	half := critical.Div(decimal.NewFromInt(2))
	switch {
	case c.Value.IsZero():
		passed = append(passed, "Zero value transaction (safe)")
	case c.Value.GreaterThan(critical):
		score += 40
		failed = append(failed, fmt.Sprintf("High value: %s ETH exceeds %s ETH limit", c.Value, critical))
	case c.Value.GreaterThan(half):
		score += 20
		failed = append(failed, fmt.Sprintf("Medium-high value: %s ETH", c.Value))
	default:
		passed = append(passed, fmt.Sprintf("Value %s ETH within safe range", c.Value))
	}

	// Daily limit utilization.
	usagePct := 0
	if in.DailyLimit.IsPositive() {
		usagePct = int(in.DailySpent.Div(in.DailyLimit).Mul(decimal.NewFromInt(100)).IntPart())
	}
	switch {
	case usagePct > 90:
		score += 30
		failed = append(failed, fmt.Sprintf("Daily limit nearly exhausted (%d%% used)", usagePct))
	case usagePct > 70:
		score += 15
		failed = append(failed, fmt.Sprintf("Daily limit %d%% used", usagePct))
	default:
		passed = append(passed, fmt.Sprintf("Daily limit usage OK (%d%%)", usagePct))
	}

	// Function selector.
	if c.FunctionSig != "" {
		if sig, ok := db.FunctionSig(c.FunctionSig); ok {
			score += 25
			failed = append(failed, fmt.Sprintf("Suspicious function: %s", sig.Name))
		} else {
			passed = append(passed, "Function signature not flagged")
		}
	} else {
		passed = append(passed, "Simple ETH transfer (no contract call)")
	}

	// Whitelist membership.
	if in.IsWhitelisted {
		score -= 10
		if score < 0 {
			score = 0
		}
		passed = append(passed, "Target address is whitelisted")
	} else {
		score += 10
		failed = append(failed, "Target address not in whitelist")
	}

	// Protocol reputation.
	if c.Protocol != "" {
		if db.IsSafeProtocol(c.Protocol) {
			score -= 5
			if score < 0 {
				score = 0
			}
			passed = append(passed, fmt.Sprintf("Protocol %q is well-known and audited", c.Protocol))
		} else {
			score += 10
			failed = append(failed, fmt.Sprintf("Protocol %q is unknown or unaudited", c.Protocol))
		}
	}

	// Agent trust band.
	switch {
	case in.TrustScore >= trustHighBand:
		passed = append(passed, fmt.Sprintf("Agent trust score high (%d/100)", in.TrustScore))
	case in.TrustScore >= trustModerateBand:
		score += 10
		failed = append(failed, fmt.Sprintf("Agent trust score moderate (%d/100)", in.TrustScore))
	default:
		score += 20
		failed = append(failed, fmt.Sprintf("Agent trust score low (%d/100)", in.TrustScore))
	}

	// Intent consistency.
	if c.Intent != "" {
		if mismatches := intent.Check(c.Intent, c.TargetAddress, c.Value); len(mismatches) > 0 {
			score += 20
			for _, m := range mismatches {
				failed = append(failed, m.Detail)
			}
		} else {
			passed = append(passed, "Intent appears consistent with transaction")
		}
	}

	score = model.ClampScore(score)
	return Assessment{
		Score:  score,
		Tier:   model.TierForScore(score),
		Passed: passed,
		Failed: failed,
	}
}
