// Package server exposes the guardrail over a JSON HTTP API. It owns the
// daemon's collaborators: the SQLite store, the audit log, the approval
// store, and the decision engine itself. The engine can be swapped at
// runtime when the threat pattern file changes; in-memory state (spend
// counters, blacklist edits) survives the swap.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/alert"
	"github.com/aegischain/aegisd/internal/approval"
	"github.com/aegischain/aegisd/internal/audit"
	"github.com/aegischain/aegisd/internal/config"
	"github.com/aegischain/aegisd/internal/guardrail"
	"github.com/aegischain/aegisd/internal/outcome"
	"github.com/aegischain/aegisd/internal/reasoner"
	"github.com/aegischain/aegisd/internal/registry"
	"github.com/aegischain/aegisd/internal/store"
	"github.com/aegischain/aegisd/internal/threatdb"
)

// Server is the aegisd HTTP daemon.
type Server struct {
	mu     sync.RWMutex
	engine *guardrail.Engine

	cfg       *config.Config
	db        *store.Store
	auditLog  *audit.Log
	approvals *approval.Store
	outcome   *outcome.Guard
	alerts    *alert.Dispatcher
	log       *zap.Logger

	httpServer *http.Server
}

// New builds the daemon from its configuration: opens the store and audit
// log, creates the approval store, and assembles the engine with its trust
// chain, explainer, and sinks.
func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	var auditLog *audit.Log
	if cfg.AuditPath != "" {
		auditLog, err = audit.Open(cfg.AuditPath)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	pendingDir := cfg.PendingDir
	if pendingDir == "" {
		pendingDir = approval.DefaultDir()
	}
	approvals, err := approval.NewStore(pendingDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server: approval store: %w", err)
	}
	approvals.Cleanup()

	llm := reasoner.New(cfg.ReasonerSettings(), log)

	s := &Server{
		cfg:       cfg,
		db:        db,
		auditLog:  auditLog,
		approvals: approvals,
		outcome:   outcome.New(analyzerOrNil(llm), db, log),
		alerts:    alert.NewDispatcher(cfg.Alerts),
		log:       log,
	}
	if s.alerts != nil {
		s.outcome.SetAlerter(s.alerts)
	}

	engine, err := s.buildEngine(guardrail.NewState(), llm)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.engine = engine

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// buildEngine assembles a decision engine around the given state. Reload
// calls this again with the existing state so spend and list edits persist.
func (s *Server) buildEngine(state *guardrail.State, llm *reasoner.Client) (*guardrail.Engine, error) {
	db, err := threatdb.Load(s.cfg.ThreatsPath)
	if err != nil {
		return nil, err
	}

	trust := []guardrail.TrustSource{s.db}
	if reg := registry.New(s.cfg.Registry, s.log); reg != nil {
		trust = append(trust, reg)
	}

	sinks := []guardrail.Sink{s.db, s.approvals}
	if s.auditLog != nil {
		sinks = append(sinks, s.auditLog)
	}
	if s.alerts != nil {
		sinks = append(sinks, s.alerts)
	}

	opts := []guardrail.Option{
		guardrail.WithTrustSources(trust...),
		guardrail.WithSinks(sinks...),
	}
	if llm != nil {
		opts = append(opts, guardrail.WithExplainer(llm))
	}

	return guardrail.New(state, db, s.cfg.Engine, s.log, opts...), nil
}

// analyzerOrNil avoids handing the outcome guard a typed-nil interface.
func analyzerOrNil(llm *reasoner.Client) outcome.Analyzer {
	if llm == nil {
		return nil
	}
	return llm
}

// Engine returns the current decision engine.
func (s *Server) Engine() *guardrail.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Store returns the SQLite store.
func (s *Server) Store() *store.Store { return s.db }

// Approvals returns the manual-approval store.
func (s *Server) Approvals() *approval.Store { return s.approvals }

// Outcome returns the post-transaction trust guard.
func (s *Server) Outcome() *outcome.Guard { return s.outcome }

// Audit returns the audit log, or nil when not configured.
func (s *Server) Audit() *audit.Log { return s.auditLog }

// Reload rebuilds the engine from the threat pattern file, keeping the
// current state. Called by the hot-reloader on file change.
func (s *Server) Reload() error {
	s.mu.RLock()
	state := s.engine.State()
	s.mu.RUnlock()

	llm := reasoner.New(s.cfg.ReasonerSettings(), s.log)
	engine, err := s.buildEngine(state, llm)
	if err != nil {
		return fmt.Errorf("server: reload: %w", err)
	}

	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()

	s.log.Info("threat patterns reloaded", zap.String("path", s.cfg.ThreatsPath))
	return nil
}

// Serve starts the HTTP server on the configured address. Blocks until
// Shutdown is called.
func (s *Server) Serve() error {
	s.log.Info("listening", zap.String("addr", s.cfg.Listen))
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ServeOn starts the HTTP server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Close releases the store and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.auditLog != nil {
		firstErr = s.auditLog.Close()
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
