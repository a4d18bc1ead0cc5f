package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/aegischain/aegisd/internal/model"
)

// EventTrustCollapse is the Type carried by events raised when an agent's
// trust score falls below the critical floor.
const EventTrustCollapse = "trust_collapse"

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []Config
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []Config) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the event to all webhooks whose Events list matches.
// Matching is based on event.Decision or event.Type (for trust_collapse).
// Fires goroutines — does not block the caller.
func (d *Dispatcher) Dispatch(event Event) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, event) {
			go Send(cfg, event)
		}
	}
}

// Record maps a verdict to an alert event. APPROVED verdicts only reach
// webhooks that subscribed to them explicitly. Satisfies the engine's Sink
// interface; a nil Dispatcher is a no-op.
func (d *Dispatcher) Record(ctx context.Context, c model.Candidate, v model.Verdict) error {
	if d == nil {
		return nil
	}
	d.Dispatch(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TxID:      v.TxID,
		Agent:     model.NormalizeAddress(c.AgentAddress),
		Target:    model.NormalizeAddress(c.TargetAddress),
		Value:     c.Value.String(),
		Decision:  string(v.Decision),
		RiskScore: v.RiskScore,
		RiskTier:  string(v.RiskTier),
		Reason:    v.BlockReason,
	})
	return nil
}

// TrustCollapse dispatches a trust_collapse event for an agent whose score
// fell below the critical floor. Nil-safe like Record.
func (d *Dispatcher) TrustCollapse(agent string, oldTrust, newTrust int) {
	if d == nil {
		return
	}
	d.Dispatch(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Agent:     model.NormalizeAddress(agent),
		Type:      EventTrustCollapse,
		RiskTier:  string(model.TierCritical),
		Reason:    fmt.Sprintf("Trust score fell from %d to %d", oldTrust, newTrust),
	})
}

func matches(events []string, event Event) bool {
	for _, e := range events {
		if e == event.Decision {
			return true
		}
		if event.Type != "" && e == event.Type {
			return true
		}
	}
	return false
}
