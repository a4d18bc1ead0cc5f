// Package intent detects mismatches between an agent's stated free-text
// intent and the actual transaction parameters (hallucination detection).
// Pure lexical matching; deliberately conservative — only the first
// extracted address/amount is compared.
package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aegischain/aegisd/internal/model"
)

var (
	addressRe = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	amountRe  = regexp.MustCompile(`(\d+\.?\d*)\s*(?:eth|ETH|Eth)\b`)
)

// amountTolerance is the maximum accepted difference between a stated
// amount and the actual value before it counts as a mismatch.
var amountTolerance = decimal.NewFromFloat(0.001)

// ExtractAddresses returns all well-formed address tokens in the text.
func ExtractAddresses(text string) []string {
	return addressRe.FindAllString(text, -1)
}

// ExtractAmounts returns all "<number> eth" amounts in the text, in order.
// Tokens that fail decimal parsing are skipped.
func ExtractAmounts(text string) []decimal.Decimal {
	matches := amountRe.FindAllStringSubmatch(text, -1)
	amounts := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		if v, err := decimal.NewFromString(m[1]); err == nil {
			amounts = append(amounts, v)
		}
	}
	return amounts
}

// Check compares intent text against the actual target and value.
// Empty intent yields no findings. Deterministic; no side effects.
func Check(intentText, actualTarget string, actualValue decimal.Decimal) []model.Mismatch {
	if intentText == "" {
		return nil
	}

	var mismatches []model.Mismatch

	mentioned := ExtractAddresses(intentText)
	if len(mentioned) > 0 && !anyMatches(mentioned, actualTarget) {
		mismatches = append(mismatches, model.Mismatch{
			Kind: "address",
			Detail: fmt.Sprintf("Intent mentions %s... but target is %s...",
				shortAddr(mentioned[0]), shortAddr(actualTarget)),
		})
	}

	amounts := ExtractAmounts(intentText)
	if len(amounts) > 0 {
		diff := amounts[0].Sub(actualValue).Abs()
		if diff.GreaterThan(amountTolerance) {
			mismatches = append(mismatches, model.Mismatch{
				Kind: "amount",
				Detail: fmt.Sprintf("Intent says %s ETH but tx value is %s ETH",
					amounts[0], actualValue),
			})
		}
	}

	return mismatches
}

func anyMatches(addrs []string, target string) bool {
	norm := model.NormalizeAddress(target)
	for _, a := range addrs {
		if strings.ToLower(a) == norm {
			return true
		}
	}
	return false
}

// shortAddr truncates an address for human-readable findings.
func shortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10]
}
