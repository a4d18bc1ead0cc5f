package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/approval"
	"github.com/aegischain/aegisd/internal/audit"
	"github.com/aegischain/aegisd/internal/guardrail"
	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/outcome"
	"github.com/aegischain/aegisd/internal/store"
)

// routes wires every API endpoint. Method-qualified patterns reject
// mismatched verbs with 405 for free.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/transactions/validate", s.handleValidate)
	mux.HandleFunc("GET /api/v1/transactions/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/transactions/{tx_id}", s.handleTransaction)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("POST /api/v1/outcome", s.handleOutcome)

	mux.HandleFunc("GET /api/v1/blacklist", s.handleListBlacklist)
	mux.HandleFunc("POST /api/v1/blacklist/{address}", s.handleBlacklistAdd)
	mux.HandleFunc("DELETE /api/v1/blacklist/{address}", s.handleBlacklistRemove)
	mux.HandleFunc("GET /api/v1/whitelist", s.handleListWhitelist)
	mux.HandleFunc("POST /api/v1/whitelist/{address}", s.handleWhitelistAdd)
	mux.HandleFunc("DELETE /api/v1/whitelist/{address}", s.handleWhitelistRemove)

	mux.HandleFunc("POST /api/v1/agents", s.handleAgentRegister)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgentList)
	mux.HandleFunc("GET /api/v1/agents/{address}", s.handleAgentGet)
	mux.HandleFunc("PATCH /api/v1/agents/{address}", s.handleAgentUpdate)

	mux.HandleFunc("GET /api/v1/audit", s.handleAuditTail)
	mux.HandleFunc("GET /api/v1/audit/verify", s.handleAuditVerify)

	mux.HandleFunc("GET /api/v1/pending", s.handlePendingList)
	mux.HandleFunc("POST /api/v1/pending/{tx_id}/approve", s.handlePendingApprove)
	mux.HandleFunc("POST /api/v1/pending/{tx_id}/deny", s.handlePendingDeny)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, apiError{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var c model.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	v, err := s.Engine().Evaluate(r.Context(), c)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.db.History(r.Context(), r.URL.Query().Get("agent"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if recs == nil {
		recs = []store.TxRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": recs, "count": len(recs)})
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	rec, err := s.db.Transaction(r.Context(), r.PathValue("tx_id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.db.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// outcomeRequest mirrors the outcome report with the decision as a string.
type outcomeRequest struct {
	TxID          string  `json:"tx_id"`
	AgentAddress  string  `json:"agent_address"`
	TargetAddress string  `json:"target_address,omitempty"`
	ValueETH      float64 `json:"value_eth,omitempty"`
	Intent        string  `json:"intent,omitempty"`
	Decision      string  `json:"decision"`
	Explanation   string  `json:"ai_explanation,omitempty"`
	// Pointer so an explicit zero survives decoding: nil means "look it up".
	CurrentTrust *int `json:"current_trust_score,omitempty"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.TxID == "" || req.AgentAddress == "" {
		writeError(w, http.StatusBadRequest, "tx_id and agent_address are required")
		return
	}

	trust := guardrail.DefaultTrustScore
	if req.CurrentTrust != nil {
		trust = *req.CurrentTrust
	} else if resolved, err := s.db.TrustScore(r.Context(), req.AgentAddress); err == nil {
		trust = resolved
	}

	res := s.outcome.Review(r.Context(), outcome.Report{
		TxID:          req.TxID,
		AgentAddress:  req.AgentAddress,
		TargetAddress: req.TargetAddress,
		Value:         decimal.NewFromFloat(req.ValueETH),
		Intent:        req.Intent,
		Decision:      model.Decision(req.Decision),
		Explanation:   req.Explanation,
		CurrentTrust:  trust,
	})

	s.audit(audit.Entry{
		EventType:   audit.EventOutcome,
		TxID:        req.TxID,
		Agent:       model.NormalizeAddress(req.AgentAddress),
		Description: fmt.Sprintf("Outcome reviewed: trust %d -> %d", trust, res.NewTrust),
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListBlacklist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"addresses": s.Engine().State().Blacklist()})
}

func (s *Server) handleBlacklistAdd(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	s.Engine().State().AddBlacklist(addr)
	s.audit(audit.Entry{
		EventType:   audit.EventBlacklistAdd,
		Target:      model.NormalizeAddress(addr),
		Description: "Address added to blacklist",
	})
	writeJSON(w, http.StatusOK, map[string]string{"address": model.NormalizeAddress(addr), "status": "blacklisted"})
}

func (s *Server) handleBlacklistRemove(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	s.Engine().State().RemoveBlacklist(addr)
	writeJSON(w, http.StatusOK, map[string]string{"address": model.NormalizeAddress(addr), "status": "removed"})
}

func (s *Server) handleListWhitelist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"addresses": s.Engine().State().Whitelist()})
}

func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	s.Engine().State().AddWhitelist(addr)
	s.audit(audit.Entry{
		EventType:   audit.EventWhitelistAdd,
		Target:      model.NormalizeAddress(addr),
		Description: "Address added to whitelist",
	})
	writeJSON(w, http.StatusOK, map[string]string{"address": model.NormalizeAddress(addr), "status": "whitelisted"})
}

func (s *Server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	s.Engine().State().RemoveWhitelist(addr)
	writeJSON(w, http.StatusOK, map[string]string{"address": model.NormalizeAddress(addr), "status": "removed"})
}

type registerRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Trust   *int   `json:"trust_score,omitempty"`
}

func (s *Server) handleAgentRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Address == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "address and name are required")
		return
	}

	trust := guardrail.DefaultTrustScore
	if req.Trust != nil {
		trust = *req.Trust
	}
	a, err := s.db.RegisterAgent(r.Context(), req.Address, req.Name, trust)
	if err != nil {
		writeError(w, http.StatusConflict, "%v", err)
		return
	}

	s.audit(audit.Entry{
		EventType:   audit.EventAgentRegister,
		Agent:       a.Address,
		Description: fmt.Sprintf("Agent %q registered with trust %d", a.Name, a.TrustScore),
	})
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleAgentList(w http.ResponseWriter, r *http.Request) {
	agents, err := s.db.Agents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if agents == nil {
		agents = []model.Agent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents, "count": len(agents)})
}

func (s *Server) handleAgentGet(w http.ResponseWriter, r *http.Request) {
	a, err := s.db.Agent(r.Context(), r.PathValue("address"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type agentUpdateRequest struct {
	TrustScore *int  `json:"trust_score,omitempty"`
	Active     *bool `json:"is_active,omitempty"`
}

func (s *Server) handleAgentUpdate(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	var req agentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.TrustScore == nil && req.Active == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.TrustScore != nil {
		if err := s.db.SetTrust(r.Context(), addr, *req.TrustScore); err != nil {
			writeAgentUpdateError(w, err)
			return
		}
	}
	if req.Active != nil {
		if err := s.db.SetActive(r.Context(), addr, *req.Active); err != nil {
			writeAgentUpdateError(w, err)
			return
		}
	}

	a, err := s.db.Agent(r.Context(), addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	s.audit(audit.Entry{
		EventType:   audit.EventAgentUpdate,
		Agent:       a.Address,
		Description: fmt.Sprintf("Agent updated: trust %d, active %v", a.TrustScore, a.Active),
	})
	writeJSON(w, http.StatusOK, a)
}

func writeAgentUpdateError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "%v", err)
}

func (s *Server) handleAuditTail(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeError(w, http.StatusNotFound, "audit log is not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := audit.Tail(s.auditLog.Path(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeError(w, http.StatusNotFound, "audit log is not configured")
		return
	}
	writeJSON(w, http.StatusOK, audit.Verify(s.auditLog.Path()))
}

func (s *Server) handlePendingList(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.approvals.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if tickets == nil {
		tickets = []approval.Ticket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets, "count": len(tickets)})
}

type approveRequest struct {
	Duration string `json:"duration,omitempty"`
}

func (s *Server) handlePendingApprove(w http.ResponseWriter, r *http.Request) {
	txID := r.PathValue("tx_id")

	var req approveRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
	}
	var duration time.Duration
	if req.Duration != "" {
		var err error
		duration, err = time.ParseDuration(req.Duration)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid duration %q: %v", req.Duration, err)
			return
		}
	}

	if err := s.approvals.Approve(txID, duration); err != nil {
		writeError(w, http.StatusNotFound, "%v", err)
		return
	}
	s.audit(audit.Entry{
		EventType:   audit.EventApprovalGrant,
		TxID:        txID,
		Description: "Pending transaction approved by operator",
	})
	writeJSON(w, http.StatusOK, map[string]string{"tx_id": txID, "status": "approved"})
}

func (s *Server) handlePendingDeny(w http.ResponseWriter, r *http.Request) {
	txID := r.PathValue("tx_id")
	if err := s.approvals.Deny(txID); err != nil {
		writeError(w, http.StatusNotFound, "%v", err)
		return
	}
	s.audit(audit.Entry{
		EventType:   audit.EventApprovalDeny,
		TxID:        txID,
		Description: "Pending transaction denied by operator",
	})
	writeJSON(w, http.StatusOK, map[string]string{"tx_id": txID, "status": "denied"})
}

// audit appends an administrative event; failures are logged, not surfaced.
func (s *Server) audit(e audit.Entry) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Append(e); err != nil {
		s.log.Warn("audit append failed", zap.String("event", e.EventType), zap.Error(err))
	}
}
