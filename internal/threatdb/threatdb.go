// Package threatdb holds the static threat knowledge base: known exploit
// function selectors, prompt-injection phrases, contract reputation, and
// value tier thresholds. Read-only after construction; safe for
// unsynchronized concurrent reads.
package threatdb

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aegischain/aegisd/internal/model"
)

// Severity ranks a known exploit signature.
type Severity string

const (
	SevMedium   Severity = "MEDIUM"
	SevHigh     Severity = "HIGH"
	SevCritical Severity = "CRITICAL"
)

// Signature describes one known exploit function selector.
type Signature struct {
	Name     string   `yaml:"name"`
	Severity Severity `yaml:"severity"`
	Desc     string   `yaml:"desc"`
}

// ContractStatus classifies a target address.
type ContractStatus string

const (
	ContractSafe      ContractStatus = "safe"
	ContractMalicious ContractStatus = "malicious"
	ContractUnknown   ContractStatus = "unknown"
)

// Patterns is the raw, YAML-serializable form of the knowledge base.
type Patterns struct {
	ExploitSignatures  map[string]Signature `yaml:"exploit_signatures"`
	InjectionPhrases   []string             `yaml:"injection_phrases"`
	SafeContracts      map[string]string    `yaml:"safe_contracts"`
	MaliciousContracts map[string]string    `yaml:"malicious_contracts"`
	SafeProtocols      []string             `yaml:"safe_protocols"`
	ValueThresholds    ValueThresholds      `yaml:"value_thresholds"`
}

// ValueThresholds are the ascending value tier boundaries (inclusive).
// Plain floats in YAML; compiled to decimals in New.
type ValueThresholds struct {
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// DB is the compiled knowledge base with normalized lookup keys.
type DB struct {
	signatures    map[string]Signature
	phrases       []string
	safe          map[string]string
	malicious     map[string]string
	safeProtocols map[string]bool

	tierMedium   decimal.Decimal
	tierHigh     decimal.Decimal
	tierCritical decimal.Decimal

	raw Patterns
}

// New compiles a DB from raw patterns, lower-casing all lookup keys.
func New(p Patterns) *DB {
	db := &DB{
		signatures:    make(map[string]Signature, len(p.ExploitSignatures)),
		phrases:       make([]string, 0, len(p.InjectionPhrases)),
		safe:          make(map[string]string, len(p.SafeContracts)),
		malicious:     make(map[string]string, len(p.MaliciousContracts)),
		safeProtocols: make(map[string]bool, len(p.SafeProtocols)),
		tierMedium:    decimal.NewFromFloat(p.ValueThresholds.Medium),
		tierHigh:      decimal.NewFromFloat(p.ValueThresholds.High),
		tierCritical:  decimal.NewFromFloat(p.ValueThresholds.Critical),
		raw:           p,
	}
	for sig, info := range p.ExploitSignatures {
		db.signatures[strings.ToLower(sig)] = info
	}
	for _, phrase := range p.InjectionPhrases {
		db.phrases = append(db.phrases, strings.ToLower(phrase))
	}
	for addr, name := range p.SafeContracts {
		db.safe[model.NormalizeAddress(addr)] = name
	}
	for addr, name := range p.MaliciousContracts {
		db.malicious[model.NormalizeAddress(addr)] = name
	}
	for _, proto := range p.SafeProtocols {
		db.safeProtocols[strings.ToLower(proto)] = true
	}
	return db
}

// NewDefault compiles a DB from the built-in patterns.
func NewDefault() *DB {
	return New(DefaultPatterns())
}

// Load reads the knowledge base from a YAML file.
// Empty path falls back to ~/.aegisd/threats.yaml. Missing file returns
// the built-in defaults. Invalid YAML returns an error.
func Load(path string) (*DB, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return NewDefault(), nil
		}
		path = filepath.Join(home, ".aegisd", "threats.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return nil, err
	}

	// Start with defaults, YAML overwrites only specified sections.
	p := DefaultPatterns()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return New(p), nil
}

// FunctionSig returns the signature entry for a selector, if known.
func (d *DB) FunctionSig(selector string) (Signature, bool) {
	if selector == "" {
		return Signature{}, false
	}
	sig, ok := d.signatures[strings.ToLower(selector)]
	return sig, ok
}

// InjectionHits returns every injection phrase contained in the text,
// case-insensitive, in pattern order.
func (d *DB) InjectionHits(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var hits []string
	for _, phrase := range d.phrases {
		if strings.Contains(lower, phrase) {
			hits = append(hits, phrase)
		}
	}
	return hits
}

// ContractStatus classifies an address as safe, malicious, or unknown.
// The returned name describes the match ("Uniswap V2 Router" etc).
func (d *DB) ContractStatus(address string) (ContractStatus, string) {
	addr := model.NormalizeAddress(address)
	if name, ok := d.safe[addr]; ok {
		return ContractSafe, name
	}
	if name, ok := d.malicious[addr]; ok {
		return ContractMalicious, name
	}
	return ContractUnknown, "Unverified contract"
}

// ValueTier classifies a value against the ascending thresholds.
func (d *DB) ValueTier(value decimal.Decimal) model.RiskTier {
	switch {
	case value.GreaterThanOrEqual(d.tierCritical):
		return model.TierCritical
	case value.GreaterThanOrEqual(d.tierHigh):
		return model.TierHigh
	case value.GreaterThanOrEqual(d.tierMedium):
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// CriticalThreshold is the value at and above which a transaction is
// value-critical on its own.
func (d *DB) CriticalThreshold() decimal.Decimal { return d.tierCritical }

// IsSafeProtocol reports whether the protocol is on the audited list.
func (d *DB) IsSafeProtocol(protocol string) bool {
	return d.safeProtocols[strings.ToLower(protocol)]
}
