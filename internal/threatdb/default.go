package threatdb

// DefaultPatterns returns the built-in knowledge base. Operational updates
// go in ~/.aegisd/threats.yaml; these are the shipped baselines.
func DefaultPatterns() Patterns {
	return Patterns{
		ExploitSignatures: map[string]Signature{
			"0x2e1a7d4d": {Name: "withdraw(uint256)", Severity: SevHigh, Desc: "Direct withdraw — used in reentrancy attacks"},
			"0xf3fef3a3": {Name: "withdraw(address,uint256)", Severity: SevHigh, Desc: "Token withdrawal"},
			"0x853828b6": {Name: "withdrawAll()", Severity: SevCritical, Desc: "Drain all funds"},
			"0xa0712d68": {Name: "mint(uint256)", Severity: SevMedium, Desc: "Token minting — verify authorization"},
			"0x42966c68": {Name: "burn(uint256)", Severity: SevMedium, Desc: "Token burning"},
			"0x095ea7b3": {Name: "approve(address,uint256)", Severity: SevMedium, Desc: "Unlimited approval — common exploit vector"},
		},
		InjectionPhrases: []string{
			"ignore previous instructions",
			"ignore all guardrails",
			"bypass security",
			"disable safety",
			"send all funds",
			"transfer everything",
			"override restrictions",
			"forget your rules",
			"you are now",
			"new instructions:",
			"system override",
			"admin mode",
			"developer mode",
		},
		SafeContracts: map[string]string{
			"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "Uniswap V2 Router",
			"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 Router",
			"0x7d2768de32b0b80b7a3454c06bdac94a69ddc7a9": "Aave V2 Lending Pool",
			"0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2": "Aave V3 Lending Pool",
			"0xc36442b4a4522e871399cd717abdd847ab11fe88": "Uniswap V3 Positions NFT",
		},
		MaliciousContracts: map[string]string{
			"0x0000000000000000000000000000000000000000": "Zero address — likely error",
			"0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef": "Dead address — funds unrecoverable",
		},
		SafeProtocols: []string{
			"uniswap", "aave", "compound", "curve", "lido",
			"maker", "balancer", "1inch",
		},
		ValueThresholds: ValueThresholds{
			Medium:   0.1,
			High:     0.5,
			Critical: 1.0,
		},
	}
}
