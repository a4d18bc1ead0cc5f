// Package mcp exposes the guardrail to AI agents over the Model Context
// Protocol. Agents validate transactions as a tool call; a blocked
// transaction comes back as a tool error with the reason, which keeps the
// refusal inside the agent's own reasoning loop.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/approval"
	"github.com/aegischain/aegisd/internal/guardrail"
	"github.com/aegischain/aegisd/internal/outcome"
	"github.com/aegischain/aegisd/internal/store"
	"github.com/aegischain/aegisd/internal/threatdb"
)

// Deps are the collaborators the MCP tools operate on. Engine, DB, and
// Approvals are required; Outcome and Store are optional.
type Deps struct {
	Engine    *guardrail.Engine
	DB        *threatdb.DB
	Approvals *approval.Store
	Outcome   *outcome.Guard
	Store     *store.Store
	Log       *zap.Logger
}

// Server wraps the MCP SDK server with the guardrail tools.
type Server struct {
	mcpServer *mcpsdk.Server
	deps      Deps
	log       *zap.Logger
}

// New creates the MCP server and registers the aegis tools.
func New(deps Deps) (*Server, error) {
	if deps.Engine == nil || deps.DB == nil || deps.Approvals == nil {
		return nil, fmt.Errorf("mcp: engine, pattern db, and approval store are required")
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{deps: deps, log: log}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "aegisd",
			Version: "0.1.0",
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all aegis tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "aegis_validate",
		Description: "Validate a blockchain transaction through the guardrail before executing it. Blocked transactions return an error with the reason.",
	}, s.handleValidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "aegis_precheck",
		Description: "Run fast local pre-submission checks on a transaction without contacting the scoring backend (dry-run).",
	}, s.handlePrecheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "aegis_outcome",
		Description: "Report the outcome of an executed transaction so the agent's trust score can be adjusted.",
	}, s.handleOutcome)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "aegis_pending",
		Description: "List transactions parked for manual approval.",
	}, s.handlePending)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "aegis_approve",
		Description: "Approve or deny a transaction that is pending manual review.",
	}, s.handleApprove)
}
