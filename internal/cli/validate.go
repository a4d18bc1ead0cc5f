package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/server"
)

var (
	validateAgent    string
	validateTarget   string
	validateValue    float64
	validateFnSig    string
	validateIntent   string
	validateProtocol string
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateAgent, "agent", "", "Agent address (required)")
	validateCmd.Flags().StringVar(&validateTarget, "target", "", "Target address (required)")
	validateCmd.Flags().Float64Var(&validateValue, "value", 0, "Transaction value in ETH")
	validateCmd.Flags().StringVar(&validateFnSig, "function-sig", "", "4-byte function selector")
	validateCmd.Flags().StringVar(&validateIntent, "intent", "", "Stated intent of the transaction")
	validateCmd.Flags().StringVar(&validateProtocol, "protocol", "", "Protocol name")
	validateCmd.MarkFlagRequired("agent")
	validateCmd.MarkFlagRequired("target")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Evaluate one transaction and print the verdict",
	Long: "Runs the full decision pipeline for a single transaction and prints\n" +
		"the verdict as JSON. The verdict is persisted like any daemon\n" +
		"evaluation.\n\n" +
		"Exit code 0 if approved, 1 if blocked, 2 if pending manual approval.",
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	v, err := srv.Engine().Evaluate(context.Background(), model.Candidate{
		AgentAddress:  validateAgent,
		TargetAddress: validateTarget,
		Value:         decimal.NewFromFloat(validateValue),
		FunctionSig:   validateFnSig,
		Intent:        validateIntent,
		Protocol:      validateProtocol,
	})
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))

	switch v.Decision {
	case model.Blocked:
		os.Exit(1)
	case model.Pending:
		os.Exit(2)
	}
	return nil
}
