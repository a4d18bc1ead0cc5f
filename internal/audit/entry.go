package audit

// Event types recorded in the audit trail.
const (
	EventValidated     = "TX_VALIDATED"
	EventBlocked       = "TX_BLOCKED"
	EventPending       = "TX_PENDING"
	EventOutcome       = "OUTCOME_REVIEWED"
	EventAgentRegister = "AGENT_REGISTERED"
	EventAgentUpdate   = "AGENT_UPDATED"
	EventBlacklistAdd  = "BLACKLIST_ADD"
	EventWhitelistAdd  = "WHITELIST_ADD"
	EventApprovalGrant = "APPROVAL_GRANTED"
	EventApprovalDeny  = "APPROVAL_DENIED"
)

// Entry is one line in the hash-chained JSONL audit log.
// All fields are scalars (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp   string `json:"ts"`
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	TxID        string `json:"tx_id,omitempty"`
	Agent       string `json:"agent_address,omitempty"`
	Target      string `json:"target_address,omitempty"`
	Value       string `json:"value_eth,omitempty"`
	Decision    string `json:"decision,omitempty"`
	RiskScore   int    `json:"risk_score,omitempty"`
	Description string `json:"description"`
	PrevHash    string `json:"prev_hash"`
}
