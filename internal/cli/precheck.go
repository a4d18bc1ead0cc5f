package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/preguard"
	"github.com/aegischain/aegisd/internal/threatdb"
)

var (
	precheckAgent    string
	precheckTarget   string
	precheckValue    float64
	precheckFnSig    string
	precheckIntent   string
	precheckProtocol string
)

func init() {
	rootCmd.AddCommand(precheckCmd)
	precheckCmd.Flags().StringVar(&precheckAgent, "agent", "", "Agent address (required)")
	precheckCmd.Flags().StringVar(&precheckTarget, "target", "", "Target address (required)")
	precheckCmd.Flags().Float64Var(&precheckValue, "value", 0, "Transaction value in ETH")
	precheckCmd.Flags().StringVar(&precheckFnSig, "function-sig", "", "4-byte function selector")
	precheckCmd.Flags().StringVar(&precheckIntent, "intent", "", "Stated intent of the transaction")
	precheckCmd.Flags().StringVar(&precheckProtocol, "protocol", "", "Protocol name")
	precheckCmd.MarkFlagRequired("agent")
	precheckCmd.MarkFlagRequired("target")
}

var precheckCmd = &cobra.Command{
	Use:   "precheck",
	Short: "Run fast local checks without the scoring backend",
	Long: "Evaluates a transaction against the local threat patterns only:\n" +
		"exploit selectors, prompt-injection phrases, contract reputation,\n" +
		"value tiers, and intent consistency. No state is touched.\n\n" +
		"Exit code 0 if the precheck passes, 1 if it recommends blocking.",
	RunE: runPrecheck,
}

func runPrecheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := threatdb.Load(cfg.ThreatsPath)
	if err != nil {
		return err
	}

	r := preguard.Evaluate(model.Candidate{
		AgentAddress:  precheckAgent,
		TargetAddress: precheckTarget,
		Value:         decimal.NewFromFloat(precheckValue),
		FunctionSig:   precheckFnSig,
		Intent:        precheckIntent,
		Protocol:      precheckProtocol,
	}, db)

	out, _ := json.MarshalIndent(r, "", "  ")
	fmt.Println(string(out))

	if !r.Passed {
		os.Exit(1)
	}
	return nil
}
