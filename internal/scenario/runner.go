// Package scenario runs data-driven guardrail demos: YAML files describing
// transaction sequences and the decision each one should get. The same
// files double as demo agents and as regression checks for pattern edits.
package scenario

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gopkg.in/yaml.v3"

	"github.com/aegischain/aegisd/internal/guardrail"
	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/threatdb"
)

// trustTable is a mutable in-memory trust source driven by case overrides.
type trustTable map[string]int

func (t trustTable) TrustScore(ctx context.Context, agent string) (int, error) {
	if score, ok := t[model.NormalizeAddress(agent)]; ok {
		return score, nil
	}
	return 0, fmt.Errorf("scenario: no trust set for %s", agent)
}

// Run evaluates all cases in order against one fresh engine. State is
// shared across cases, so earlier approvals raise later utilization.
func Run(s *Scenario, db *threatdb.DB, cfg guardrail.Config) *RunResult {
	trust := trustTable{}
	engine := guardrail.New(guardrail.NewState(), db, cfg, zap.NewNop(),
		guardrail.WithTrustSources(trust))

	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	for i, c := range s.Cases {
		if c.Trust != nil {
			trust[model.NormalizeAddress(c.Tx.Agent)] = *c.Trust
		}

		cand := model.Candidate{
			AgentAddress:  c.Tx.Agent,
			TargetAddress: c.Tx.Target,
			Value:         decimal.NewFromFloat(c.Tx.ValueETH),
			FunctionSig:   c.Tx.FunctionSig,
			Intent:        c.Tx.Intent,
			Protocol:      c.Tx.Protocol,
		}

		cr := CaseResult{
			Index:    i + 1,
			Agent:    c.Tx.Agent,
			Target:   c.Tx.Target,
			Expected: strings.ToUpper(c.Expect),
		}

		v, err := engine.Evaluate(context.Background(), cand)
		if err != nil {
			cr.Actual = "ERROR"
			cr.Reason = err.Error()
		} else {
			cr.Actual = string(v.Decision)
			cr.RiskScore = v.RiskScore
			cr.Reason = v.BlockReason
		}

		if cr.Actual == cr.Expected {
			cr.Passed = true
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

// LoadAndRun loads a scenario YAML file, compiles the pattern store, and
// runs the cases.
func LoadAndRun(path, threatsPath string, cfg guardrail.Config) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	db, err := threatdb.Load(threatsPath)
	if err != nil {
		return nil, fmt.Errorf("load threat patterns: %w", err)
	}

	result := Run(&s, db, cfg)
	result.File = path
	return result, nil
}
