package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegischain/aegisd/internal/guardrail"
	"github.com/aegischain/aegisd/internal/store"
)

var (
	agentName  string
	agentTrust int
)

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.AddCommand(agentsRegisterCmd)
	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsShowCmd)
	agentsCmd.AddCommand(agentsSetTrustCmd)
	agentsCmd.AddCommand(agentsActivateCmd)
	agentsCmd.AddCommand(agentsDeactivateCmd)

	agentsRegisterCmd.Flags().StringVar(&agentName, "name", "", "Human-readable agent name (required)")
	agentsRegisterCmd.Flags().IntVar(&agentTrust, "trust", guardrail.DefaultTrustScore, "Initial trust score")
	agentsRegisterCmd.MarkFlagRequired("name")
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage registered agents",
	Long:  "Register, inspect, and update the agents the guardrail tracks.",
}

var agentsRegisterCmd = &cobra.Command{
	Use:   "register <address>",
	Short: "Register a new agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			a, err := db.RegisterAgent(ctx, args[0], agentName, agentTrust)
			if err != nil {
				return err
			}
			return printJSON(a)
		})
	},
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			agents, err := db.Agents(ctx)
			if err != nil {
				return err
			}
			if len(agents) == 0 {
				fmt.Println("No agents registered.")
				return nil
			}
			fmt.Printf("%-44s %-20s %-6s %-8s %-6s %s\n",
				"ADDRESS", "NAME", "TRUST", "ACTIVE", "TXS", "BLOCKED")
			for _, a := range agents {
				fmt.Printf("%-44s %-20s %-6d %-8v %-6d %d\n",
					a.Address, truncate(a.Name, 20), a.TrustScore, a.Active, a.TxCount, a.BlockedCount)
			}
			return nil
		})
	},
}

var agentsShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show one agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			a, err := db.Agent(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(a)
		})
	},
}

var agentsSetTrustCmd = &cobra.Command{
	Use:   "set-trust <address> <score>",
	Short: "Set an agent's trust score directly",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var trust int
		if _, err := fmt.Sscanf(args[1], "%d", &trust); err != nil {
			return fmt.Errorf("invalid trust score %q", args[1])
		}
		return withStore(func(ctx context.Context, db *store.Store) error {
			if err := db.SetTrust(ctx, args[0], trust); err != nil {
				return err
			}
			fmt.Printf("%s trust set to %d\n", args[0], trust)
			return nil
		})
	},
}

var agentsActivateCmd = &cobra.Command{
	Use:   "activate <address>",
	Short: "Reactivate an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(args[0], true) },
}

var agentsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <address>",
	Short: "Deactivate an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(args[0], false) },
}

func setActive(address string, active bool) error {
	return withStore(func(ctx context.Context, db *store.Store) error {
		if err := db.SetActive(ctx, address, active); err != nil {
			return err
		}
		state := "deactivated"
		if active {
			state = "activated"
		}
		fmt.Printf("%s %s\n", address, state)
		return nil
	})
}

// withStore opens the configured database, runs fn, and closes it.
func withStore(fn func(context.Context, *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.DBPath, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(context.Background(), db)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
