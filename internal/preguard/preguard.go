// Package preguard is the first guardrail layer: fast, local, side-effect
// free checks that run before any network call. It can terminally reject a
// candidate, turning an obviously bad transaction around without spending a
// round trip on the scoring backend.
package preguard

import (
	"fmt"
	"strings"

	"github.com/aegischain/aegisd/internal/intent"
	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/threatdb"
)

// Recommendations returned to the submitting agent.
const (
	RecommendAbort   = "ABORT — critical issues found"
	RecommendCaution = "PROCEED WITH CAUTION — multiple warnings"
	RecommendProceed = "PROCEED — pre-checks passed"
)

// softWarningLimit is how many soft warnings escalate a passing result
// to MEDIUM with a caution recommendation.
const softWarningLimit = 3

// Result is the outcome of the local pre-submission evaluation.
// A failed result is a normal terminal outcome, not an error.
type Result struct {
	Passed         bool           `json:"passed"`
	RiskTier       model.RiskTier `json:"risk_level"`
	Flags          []string       `json:"flags"`
	Warnings       []string       `json:"warnings"`
	Recommendation string         `json:"recommendation"`
}

// Evaluation order (must not be changed):
//  1. Prompt-injection scan of intent text — hard flag
//  2. Target contract classification — malicious hard, unknown/safe soft
//  3. Function selector severity — HIGH/CRITICAL hard, else soft
//  4. Value tier — CRITICAL hard, HIGH/MEDIUM soft
//  5. Intent consistency mismatches — hard (hallucinated intent)
//  6. Zero-address target — hard (fund burn)
func Evaluate(c model.Candidate, db *threatdb.DB) Result {
	var flags, warnings []string

	// Step 1: Prompt injection in intent.
	if hits := db.InjectionHits(c.Intent); len(hits) > 0 {
		flags = append(flags, fmt.Sprintf("PROMPT INJECTION detected: %q", hits[0]))
	}

	// Step 2: Contract reputation.
	status, contractName := db.ContractStatus(c.TargetAddress)
	switch status {
	case threatdb.ContractMalicious:
		flags = append(flags, fmt.Sprintf("Target is KNOWN MALICIOUS: %s", contractName))
	case threatdb.ContractUnknown:
		warnings = append(warnings, fmt.Sprintf("Target contract unverified: %s...", shortAddr(c.TargetAddress)))
	default:
		warnings = append(warnings, fmt.Sprintf("Target is known safe contract: %s", contractName))
	}

	// Step 3: Function selector.
	if c.FunctionSig != "" {
		if sig, ok := db.FunctionSig(c.FunctionSig); ok {
			if sig.Severity == threatdb.SevHigh || sig.Severity == threatdb.SevCritical {
				flags = append(flags, fmt.Sprintf("Dangerous function: %s — %s", sig.Name, sig.Desc))
			} else {
				warnings = append(warnings, fmt.Sprintf("Risky function: %s — %s", sig.Name, sig.Desc))
			}
		}
	}

	// Step 4: Value tier.
	switch db.ValueTier(c.Value) {
	case model.TierCritical:
		flags = append(flags, fmt.Sprintf("CRITICAL value: %s ETH (>= %s ETH threshold)", c.Value, db.CriticalThreshold()))
	case model.TierHigh:
		warnings = append(warnings, fmt.Sprintf("High value: %s ETH — requires extra care", c.Value))
	case model.TierMedium:
		warnings = append(warnings, fmt.Sprintf("Medium value: %s ETH", c.Value))
	}

	// Step 5: Intent vs actual parameters.
	for _, m := range intent.Check(c.Intent, c.TargetAddress, c.Value) {
		flags = append(flags, fmt.Sprintf("HALLUCINATION DETECTED: %s", m.Detail))
	}

	// Step 6: Zero-address burn guard. Applies regardless of value.
	if model.NormalizeAddress(c.TargetAddress) == model.ZeroAddress {
		flags = append(flags, "Target is ZERO ADDRESS — transaction would burn funds")
	}

	return outcome(flags, warnings)
}

// outcome applies the pass/fail policy to collected flags and warnings.
func outcome(flags, warnings []string) Result {
	if len(flags) > 0 {
		tier := model.TierHigh
		for _, f := range flags {
			if strings.Contains(f, "CRITICAL") || strings.Contains(f, "INJECTION") ||
				strings.Contains(f, "MALICIOUS") || strings.Contains(f, "HALLUCINATION") {
				tier = model.TierCritical
				break
			}
		}
		return Result{
			Passed:         false,
			RiskTier:       tier,
			Flags:          flags,
			Warnings:       warnings,
			Recommendation: RecommendAbort,
		}
	}

	if len(warnings) >= softWarningLimit {
		return Result{
			Passed:         true,
			RiskTier:       model.TierMedium,
			Flags:          flags,
			Warnings:       warnings,
			Recommendation: RecommendCaution,
		}
	}

	return Result{
		Passed:         true,
		RiskTier:       model.TierLow,
		Flags:          flags,
		Warnings:       warnings,
		Recommendation: RecommendProceed,
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:12]
}
