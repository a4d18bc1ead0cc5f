package alert

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["BLOCKED", "PENDING", "trust_collapse"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp string `json:"timestamp"`
	TxID      string `json:"tx_id"`
	Agent     string `json:"agent_address"`
	Target    string `json:"target_address"`
	Value     string `json:"value_eth"`
	Decision  string `json:"decision"`
	RiskScore int    `json:"risk_score"`
	RiskTier  string `json:"risk_level"`
	Reason    string `json:"reason"`
	Type      string `json:"type,omitempty"` // "trust_collapse" etc.
}
