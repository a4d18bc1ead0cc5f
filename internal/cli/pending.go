package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegischain/aegisd/internal/approval"
)

func init() {
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List transactions parked for manual approval",
	Long:  "Shows every ticket in the approval store with its status, risk, and age.",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	store, err := openApprovals()
	if err != nil {
		return err
	}

	list, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list tickets: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No pending transactions.")
		return nil
	}

	fmt.Printf("%-44s %-10s %-8s %-6s %s\n", "TX ID", "STATUS", "RISK", "VALUE", "CREATED")
	for _, t := range list {
		fmt.Printf("%-44s %-10s %-8s %-6s %s\n",
			t.TxID,
			t.Status,
			t.RiskTier,
			t.Value,
			t.CreatedAt.Format("15:04:05"),
		)
	}
	return nil
}

// openApprovals opens the configured ticket directory.
func openApprovals() (*approval.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dir := cfg.PendingDir
	if dir == "" {
		dir = approval.DefaultDir()
	}
	store, err := approval.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open approval store: %w", err)
	}
	return store, nil
}
