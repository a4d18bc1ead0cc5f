package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var approveDuration string

func init() {
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(denyCmd)
	approveCmd.Flags().StringVar(&approveDuration, "duration", "", "Approval validity (e.g. 5m); omit for one-time approval")
}

var approveCmd = &cobra.Command{
	Use:   "approve <tx-id>",
	Short: "Approve a transaction pending manual review",
	Long: "Marks a parked transaction as approved. One-time by default; with\n" +
		"--duration the approval stays valid until it expires.",
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

var denyCmd = &cobra.Command{
	Use:   "deny <tx-id>",
	Short: "Deny a transaction pending manual review",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeny,
}

func runApprove(cmd *cobra.Command, args []string) error {
	var duration time.Duration
	if approveDuration != "" {
		var err error
		duration, err = time.ParseDuration(approveDuration)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", approveDuration, err)
		}
	}

	store, err := openApprovals()
	if err != nil {
		return err
	}
	if err := store.Approve(args[0], duration); err != nil {
		return err
	}

	if duration > 0 {
		fmt.Printf("%s approved for %s\n", args[0], duration)
	} else {
		fmt.Printf("%s approved (one-time)\n", args[0])
	}
	return nil
}

func runDeny(cmd *cobra.Command, args []string) error {
	store, err := openApprovals()
	if err != nil {
		return err
	}
	if err := store.Deny(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s denied\n", args[0])
	return nil
}
