package scenario

// Tx is the candidate described by one scenario case.
type Tx struct {
	Agent       string  `yaml:"agent"`
	Target      string  `yaml:"target"`
	ValueETH    float64 `yaml:"value_eth"`
	FunctionSig string  `yaml:"function_sig,omitempty"`
	Intent      string  `yaml:"intent,omitempty"`
	Protocol    string  `yaml:"protocol,omitempty"`
}

// Case is one transaction within a scenario, with its expected decision.
type Case struct {
	Tx     Tx     `yaml:"tx"`
	Expect string `yaml:"expect"` // APPROVED | BLOCKED | PENDING
	Trust  *int   `yaml:"trust,omitempty"`
	Note   string `yaml:"note,omitempty"`
}

// Scenario is a named sequence of transactions evaluated in order against
// one shared engine state, so spend accumulates across cases.
type Scenario struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one case.
type CaseResult struct {
	Index     int    `json:"index"`
	Passed    bool   `json:"passed"`
	Agent     string `json:"agent"`
	Target    string `json:"target"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
	RiskScore int    `json:"risk_score"`
	Reason    string `json:"reason"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
