package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	aegismcp "github.com/aegischain/aegisd/internal/mcp"
	"github.com/aegischain/aegisd/internal/server"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs aegisd as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes the guardrail as tools: aegis_validate, aegis_precheck,\n" +
		"aegis_outcome, aegis_pending, aegis_approve.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger()
	defer log.Sync()

	// Reuse the daemon wiring without binding the HTTP listener.
	srv, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	mcpSrv, err := aegismcp.New(aegismcp.Deps{
		Engine:    srv.Engine(),
		DB:        srv.Engine().Patterns(),
		Approvals: srv.Approvals(),
		Outcome:   srv.Outcome(),
		Store:     srv.Store(),
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "aegisd MCP server running on stdio")
	return mcpSrv.Run(ctx)
}
