package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event Event) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("aegisd: %s", event.Decision),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Agent:* %s", event.Agent)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Target:* %s", event.Target)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Value:* %s ETH", event.Value)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Risk:* %d/100 (%s)", event.RiskScore, event.RiskTier)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	severity := "info"
	switch event.RiskTier {
	case "CRITICAL":
		severity = "critical"
	case "HIGH":
		severity = "error"
	case "MEDIUM":
		severity = "warning"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("aegisd %s: %s -> %s", event.Decision, event.Agent, event.Target),
			"severity": severity,
			"source":   "aegisd",
			"custom_details": map[string]any{
				"tx_id":      event.TxID,
				"agent":      event.Agent,
				"target":     event.Target,
				"value_eth":  event.Value,
				"risk_score": event.RiskScore,
				"reason":     event.Reason,
			},
		},
	}
	return json.Marshal(payload)
}
