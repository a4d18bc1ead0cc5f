package outcome

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/model"
)

type stubAnalyzer struct {
	j   Judgment
	err error
}

func (s stubAnalyzer) AnalyzeOutcome(ctx context.Context, r Report) (Judgment, error) {
	return s.j, s.err
}

type memTrust struct {
	scores map[string]int
	err    error
}

func (m *memTrust) SetTrust(ctx context.Context, agent string, trust int) error {
	if m.err != nil {
		return m.err
	}
	if m.scores == nil {
		m.scores = make(map[string]int)
	}
	m.scores[agent] = trust
	return nil
}

func report(trust int) Report {
	return Report{
		TxID:          "0xabc",
		AgentAddress:  "0x00000000000000000000000000000000000000a1",
		TargetAddress: "0x1111111111111111111111111111111111111111",
		Value:         decimal.NewFromFloat(0.5),
		Intent:        "Swap 0.5 ETH",
		Decision:      model.Approved,
		CurrentTrust:  trust,
	}
}

func TestReviewAppliesAdjustment(t *testing.T) {
	trust := &memTrust{}
	g := New(stubAnalyzer{j: Judgment{MatchesIntent: true, Adjustment: 3, Lesson: "good trade"}}, trust, zap.NewNop())

	res := g.Review(context.Background(), report(70))
	if res.Adjustment != 3 || res.NewTrust != 73 {
		t.Errorf("adjustment=%d newTrust=%d", res.Adjustment, res.NewTrust)
	}
	if got := trust.scores["0x00000000000000000000000000000000000000a1"]; got != 73 {
		t.Errorf("persisted trust = %d", got)
	}
}

func TestReviewClampsAdjustment(t *testing.T) {
	cases := []struct {
		raw, want int
	}{
		{-50, -20},
		{-20, -20},
		{0, 0},
		{5, 5},
		{40, 5},
	}
	for _, c := range cases {
		g := New(stubAnalyzer{j: Judgment{Adjustment: c.raw}}, nil, zap.NewNop())
		if res := g.Review(context.Background(), report(50)); res.Adjustment != c.want {
			t.Errorf("raw %d: adjustment = %d, want %d", c.raw, res.Adjustment, c.want)
		}
	}
}

func TestReviewClampsTrustBounds(t *testing.T) {
	g := New(stubAnalyzer{j: Judgment{Adjustment: -20}}, nil, zap.NewNop())
	if res := g.Review(context.Background(), report(10)); res.NewTrust != 0 {
		t.Errorf("trust floor: got %d", res.NewTrust)
	}

	g = New(stubAnalyzer{j: Judgment{Adjustment: 5}}, nil, zap.NewNop())
	if res := g.Review(context.Background(), report(98)); res.NewTrust != 100 {
		t.Errorf("trust ceiling: got %d", res.NewTrust)
	}
}

func TestAnalyzerFailureIsNeutral(t *testing.T) {
	trust := &memTrust{}
	g := New(stubAnalyzer{err: errors.New("model overloaded")}, trust, zap.NewNop())

	res := g.Review(context.Background(), report(60))
	if res.Adjustment != 0 || res.NewTrust != 60 {
		t.Errorf("failed analysis moved trust: %+v", res)
	}
	if res.Lesson != "Could not analyze outcome" {
		t.Errorf("lesson = %q", res.Lesson)
	}
	// MatchesIntent defaults to whether the transaction was approved.
	if !res.MatchesIntent {
		t.Error("approved tx should default to matching intent")
	}
	if len(trust.scores) != 0 {
		t.Error("neutral review must not persist trust")
	}
}

func TestNeutralDefaultForBlockedTx(t *testing.T) {
	g := New(nil, nil, zap.NewNop())
	r := report(60)
	r.Decision = model.Blocked
	if res := g.Review(context.Background(), r); res.MatchesIntent {
		t.Error("blocked tx should default to not matching intent")
	}
}

type collapseRecorder struct {
	agent    string
	from, to int
	calls    int
}

func (c *collapseRecorder) TrustCollapse(agent string, oldTrust, newTrust int) {
	c.agent, c.from, c.to = agent, oldTrust, newTrust
	c.calls++
}

func TestReviewAlertsOnTrustCollapse(t *testing.T) {
	rec := &collapseRecorder{}
	g := New(stubAnalyzer{j: Judgment{Adjustment: -50}}, nil, zap.NewNop())
	g.SetAlerter(rec)

	// 30 - 20 (clamped) = 10, crossing the floor of 20.
	res := g.Review(context.Background(), report(30))
	if res.NewTrust != 10 {
		t.Fatalf("newTrust = %d", res.NewTrust)
	}
	if rec.calls != 1 || rec.from != 30 || rec.to != 10 {
		t.Errorf("collapse alert = %+v", rec)
	}
	if rec.agent != "0x00000000000000000000000000000000000000a1" {
		t.Errorf("agent = %q", rec.agent)
	}
}

func TestReviewNoAlertAboveFloor(t *testing.T) {
	rec := &collapseRecorder{}
	g := New(stubAnalyzer{j: Judgment{Adjustment: -20}}, nil, zap.NewNop())
	g.SetAlerter(rec)

	// 70 -> 50 is a big drop but stays above the floor.
	g.Review(context.Background(), report(70))
	if rec.calls != 0 {
		t.Errorf("unexpected collapse alert: %+v", rec)
	}

	// Already below the floor: no repeat alert for staying there.
	g2 := New(nil, nil, zap.NewNop())
	g2.SetAlerter(rec)
	g2.Review(context.Background(), report(10))
	if rec.calls != 0 {
		t.Errorf("neutral review below floor alerted: %+v", rec)
	}
}

func TestTrustPersistenceErrorDoesNotChangeResult(t *testing.T) {
	trust := &memTrust{err: errors.New("db locked")}
	g := New(stubAnalyzer{j: Judgment{Adjustment: -5}}, trust, zap.NewNop())
	if res := g.Review(context.Background(), report(60)); res.NewTrust != 55 {
		t.Errorf("newTrust = %d", res.NewTrust)
	}
}
