// Package aegis provides in-process guardrail integration for Go agent
// frameworks. It runs the local pre-submission checks against the threat
// patterns, submits candidates to the aegisd daemon for the authoritative
// verdict, and fails safe: when the daemon is unreachable the transaction
// is BLOCKED, never waved through.
//
// Usage:
//
//	client, err := aegis.New(aegis.WithBaseURL("http://127.0.0.1:8547"))
//	guarded := client.Wrap(sendTransaction)
//	txHash, err := guarded(ctx, aegis.Tx{
//	    AgentAddress:  "0x...",
//	    TargetAddress: "0x...",
//	    ValueETH:      0.05,
//	    Intent:        "Swap 0.05 ETH for USDC on Uniswap",
//	})
//
// The SDK links directly against internal packages for the local checks.
// External users import github.com/aegischain/aegisd/sdk/go/aegis.
package aegis
