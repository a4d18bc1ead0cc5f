package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aegischain/aegisd/internal/guardrail"
	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/outcome"
	"github.com/aegischain/aegisd/internal/server"
)

var (
	outcomeTxID     string
	outcomeAgent    string
	outcomeTarget   string
	outcomeValue    float64
	outcomeIntent   string
	outcomeDecision string
	outcomeTrust    int
)

func init() {
	rootCmd.AddCommand(outcomeCmd)
	outcomeCmd.Flags().StringVar(&outcomeTxID, "tx-id", "", "Transaction id from validate (required)")
	outcomeCmd.Flags().StringVar(&outcomeAgent, "agent", "", "Agent address (required)")
	outcomeCmd.Flags().StringVar(&outcomeTarget, "target", "", "Target address")
	outcomeCmd.Flags().Float64Var(&outcomeValue, "value", 0, "Transaction value in ETH")
	outcomeCmd.Flags().StringVar(&outcomeIntent, "intent", "", "Originally stated intent")
	outcomeCmd.Flags().StringVar(&outcomeDecision, "decision", "APPROVED", "Verdict given at validation time")
	outcomeCmd.Flags().IntVar(&outcomeTrust, "trust", 0, "Agent's current trust (looked up when omitted)")
	outcomeCmd.MarkFlagRequired("tx-id")
	outcomeCmd.MarkFlagRequired("agent")
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Report a settled transaction and adjust agent trust",
	Long: "Reviews an executed transaction against its stated intent and moves\n" +
		"the agent's trust score within bounded limits. Rewards are small,\n" +
		"penalties are larger; an analyzer outage never moves trust.",
	RunE: runOutcome,
}

func runOutcome(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger()
	defer log.Sync()

	srv, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	ctx := context.Background()
	trust := outcomeTrust
	if trust == 0 {
		if resolved, err := srv.Store().TrustScore(ctx, outcomeAgent); err == nil {
			trust = resolved
		} else {
			trust = guardrail.DefaultTrustScore
		}
	}

	res := srv.Outcome().Review(ctx, outcome.Report{
		TxID:          outcomeTxID,
		AgentAddress:  outcomeAgent,
		TargetAddress: outcomeTarget,
		Value:         decimal.NewFromFloat(outcomeValue),
		Intent:        outcomeIntent,
		Decision:      model.Decision(outcomeDecision),
		CurrentTrust:  trust,
	})

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	return nil
}
