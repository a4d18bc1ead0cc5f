package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/config"
	"github.com/aegischain/aegisd/internal/model"
	"github.com/aegischain/aegisd/internal/outcome"
)

const (
	agentAddr  = "0x00000000000000000000000000000000000000a1"
	routerAddr = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	// Keep the LLM out of tests regardless of the host environment.
	t.Setenv("AEGIS_LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.DBPath = ":memory:"
	cfg.AuditPath = filepath.Join(dir, "audit.jsonl")
	cfg.PendingDir = filepath.Join(dir, "pending")
	cfg.ThreatsPath = filepath.Join(dir, "threats.yaml")

	srv, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

// doJSON sends a request with an optional JSON body and decodes the JSON
// response into out (when non-nil). Returns the status code.
func doJSON(t *testing.T, method, url string, body, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func validateBody(value float64, target, protocol string) map[string]any {
	return map[string]any{
		"agent_address":  agentAddr,
		"target_address": target,
		"value_eth":      value,
		"protocol":       protocol,
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	var out map[string]string
	if code := doJSON(t, http.MethodGet, ts.URL+"/health", nil, &out); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if out["status"] != "ok" {
		t.Errorf("body = %v", out)
	}
}

func TestValidateHistoryAndStats(t *testing.T) {
	_, ts := newTestServer(t)

	var v model.Verdict
	code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		validateBody(0.05, routerAddr, "Uniswap"), &v)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if v.Decision != model.Approved {
		t.Fatalf("verdict = %+v", v)
	}
	if len(v.TxID) != 42 || !strings.HasPrefix(v.TxID, "0x") {
		t.Errorf("tx id = %q", v.TxID)
	}

	var hist struct {
		Count int `json:"count"`
		Txs   []struct {
			TxID     string `json:"tx_id"`
			Decision string `json:"decision"`
		} `json:"transactions"`
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/api/v1/transactions/history", nil, &hist); code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	if hist.Count != 1 || hist.Txs[0].TxID != v.TxID {
		t.Errorf("history = %+v", hist)
	}

	var rec struct {
		Decision string `json:"decision"`
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/api/v1/transactions/"+v.TxID, nil, &rec); code != http.StatusOK {
		t.Fatalf("transaction status = %d", code)
	}
	if rec.Decision != "APPROVED" {
		t.Errorf("record = %+v", rec)
	}

	if code := doJSON(t, http.MethodGet, ts.URL+"/api/v1/transactions/0xmissing", nil, nil); code != http.StatusNotFound {
		t.Errorf("missing tx status = %d", code)
	}

	var stats struct {
		Total    int `json:"total"`
		Approved int `json:"approved"`
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/api/v1/stats", nil, &stats); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if stats.Total != 1 || stats.Approved != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	_, ts := newTestServer(t)
	var out apiError
	code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		map[string]any{"target_address": routerAddr, "value_eth": 1}, &out)
	if code != http.StatusBadRequest || out.Error == "" {
		t.Errorf("status = %d, body = %+v", code, out)
	}
}

func TestBlacklistRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	target := "0x2222222222222222222222222222222222222222"

	if code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/blacklist/"+target, nil, nil); code != http.StatusOK {
		t.Fatalf("add status = %d", code)
	}

	var list struct {
		Addresses []string `json:"addresses"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/api/v1/blacklist", nil, &list)
	found := false
	for _, a := range list.Addresses {
		if a == target {
			found = true
		}
	}
	if !found {
		t.Fatalf("blacklist = %v", list.Addresses)
	}

	var v model.Verdict
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		validateBody(0.05, target, ""), &v)
	if v.Decision != model.Blocked || v.BlockReason != "Target address is blacklisted" {
		t.Fatalf("verdict = %+v", v)
	}

	if code := doJSON(t, http.MethodDelete, ts.URL+"/api/v1/blacklist/"+target, nil, nil); code != http.StatusOK {
		t.Fatalf("remove status = %d", code)
	}
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		validateBody(0.05, target, ""), &v)
	if v.Decision == model.Blocked {
		t.Errorf("still blocked after removal: %+v", v)
	}
}

func TestWhitelistLowersScore(t *testing.T) {
	_, ts := newTestServer(t)
	target := "0x3333333333333333333333333333333333333333"

	var before, after model.Verdict
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		validateBody(0.05, target, ""), &before)

	if code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/whitelist/"+target, nil, nil); code != http.StatusOK {
		t.Fatalf("whitelist status = %d", code)
	}
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		validateBody(0.05, target, ""), &after)

	if after.RiskScore >= before.RiskScore {
		t.Errorf("score before = %d, after = %d", before.RiskScore, after.RiskScore)
	}
}

func TestAgentLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	base := ts.URL + "/api/v1/agents"

	var a model.Agent
	code := doJSON(t, http.MethodPost, base,
		map[string]any{"address": agentAddr, "name": "trader-1", "trust_score": 90}, &a)
	if code != http.StatusCreated {
		t.Fatalf("register status = %d", code)
	}
	if a.TrustScore != 90 || !a.Active {
		t.Fatalf("agent = %+v", a)
	}

	if code := doJSON(t, http.MethodPost, base,
		map[string]any{"address": agentAddr, "name": "dup"}, nil); code != http.StatusConflict {
		t.Errorf("duplicate status = %d", code)
	}

	// A registered high-trust agent sails through a whitelisted swap.
	var v model.Verdict
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		validateBody(0.05, routerAddr, "Uniswap"), &v)
	if v.Decision != model.Approved || v.RiskScore != 0 {
		t.Errorf("verdict = %+v", v)
	}

	code = doJSON(t, http.MethodPatch, base+"/"+agentAddr,
		map[string]any{"trust_score": 30, "is_active": false}, &a)
	if code != http.StatusOK {
		t.Fatalf("patch status = %d", code)
	}
	if a.TrustScore != 30 || a.Active {
		t.Errorf("agent after patch = %+v", a)
	}

	if code := doJSON(t, http.MethodPatch, base+"/0xnobody",
		map[string]any{"trust_score": 10}, nil); code != http.StatusNotFound {
		t.Errorf("patch unknown status = %d", code)
	}
	if code := doJSON(t, http.MethodPatch, base+"/"+agentAddr,
		map[string]any{}, nil); code != http.StatusBadRequest {
		t.Errorf("empty patch status = %d", code)
	}

	var list struct {
		Count int `json:"count"`
	}
	doJSON(t, http.MethodGet, base, nil, &list)
	if list.Count != 1 {
		t.Errorf("agent list = %+v", list)
	}
}

func TestPendingApproveFlow(t *testing.T) {
	_, ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/v1/agents",
		map[string]any{"address": agentAddr, "name": "trader-1", "trust_score": 60}, nil)

	var v model.Verdict
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		validateBody(0.7, "0x1111111111111111111111111111111111111111", "mystery-dex"), &v)
	if v.Decision != model.Pending {
		t.Fatalf("verdict = %+v", v)
	}

	var pending struct {
		Count   int `json:"count"`
		Tickets []struct {
			TxID string `json:"tx_id"`
		} `json:"tickets"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/api/v1/pending", nil, &pending)
	if pending.Count != 1 || pending.Tickets[0].TxID != v.TxID {
		t.Fatalf("pending = %+v", pending)
	}

	var out map[string]string
	code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/pending/"+v.TxID+"/approve",
		map[string]any{"duration": "5m"}, &out)
	if code != http.StatusOK || out["status"] != "approved" {
		t.Errorf("approve: status = %d, body = %v", code, out)
	}

	if code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/pending/0xghost/deny", nil, nil); code != http.StatusNotFound {
		t.Errorf("deny unknown status = %d", code)
	}
}

func TestOutcomeNeutralWithoutAnalyzer(t *testing.T) {
	_, ts := newTestServer(t)

	var res outcome.Result
	code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/outcome", map[string]any{
		"tx_id":               "0xabc",
		"agent_address":       agentAddr,
		"decision":            "APPROVED",
		"current_trust_score": 70,
	}, &res)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !res.MatchesIntent || res.Adjustment != 0 || res.NewTrust != 70 {
		t.Errorf("result = %+v", res)
	}

	if code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/outcome",
		map[string]any{"agent_address": agentAddr}, nil); code != http.StatusBadRequest {
		t.Errorf("missing tx_id status = %d", code)
	}
}

func TestOutcomeExplicitZeroTrustHonored(t *testing.T) {
	_, ts := newTestServer(t)

	// A stored score must not override an explicitly reported zero.
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/agents",
		map[string]any{"address": agentAddr, "name": "trader-1", "trust_score": 60}, nil)

	var res outcome.Result
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/outcome", map[string]any{
		"tx_id":               "0xabc",
		"agent_address":       agentAddr,
		"decision":            "APPROVED",
		"current_trust_score": 0,
	}, &res)
	if res.NewTrust != 0 {
		t.Errorf("newTrust = %d, want 0", res.NewTrust)
	}

	// Omitting the field still resolves through the store.
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/outcome", map[string]any{
		"tx_id":         "0xabc",
		"agent_address": agentAddr,
		"decision":      "APPROVED",
	}, &res)
	if res.NewTrust != 60 {
		t.Errorf("resolved newTrust = %d, want 60", res.NewTrust)
	}
}

func TestAuditEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/v1/transactions/validate",
		validateBody(0.05, routerAddr, "Uniswap"), nil)
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/blacklist/0x4444444444444444444444444444444444444444", nil, nil)

	var tail struct {
		Count   int `json:"count"`
		Entries []struct {
			EventType string `json:"event_type"`
		} `json:"entries"`
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/api/v1/audit", nil, &tail); code != http.StatusOK {
		t.Fatalf("tail status = %d", code)
	}
	if tail.Count != 2 || tail.Entries[1].EventType != "BLACKLIST_ADD" {
		t.Errorf("tail = %+v", tail)
	}

	var verify struct {
		Valid bool `json:"valid"`
		Lines int  `json:"lines"`
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/api/v1/audit/verify", nil, &verify); code != http.StatusOK {
		t.Fatalf("verify status = %d", code)
	}
	if !verify.Valid || verify.Lines != 2 {
		t.Errorf("verify = %+v", verify)
	}
}

func TestReloadKeepsState(t *testing.T) {
	srv, ts := newTestServer(t)
	target := "0x5555555555555555555555555555555555555555"

	doJSON(t, http.MethodPost, ts.URL+"/api/v1/blacklist/"+target, nil, nil)

	threats := `
exploit_signatures:
  "0xdeadbeef":
    name: drainAll()
    severity: CRITICAL
    desc: test pattern
`
	if err := os.WriteFile(srv.cfg.ThreatsPath, []byte(threats), 0600); err != nil {
		t.Fatal(err)
	}
	if err := srv.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if _, ok := srv.Engine().Patterns().FunctionSig("0xDEADBEEF"); !ok {
		t.Error("reloaded pattern not found")
	}
	if !srv.Engine().State().IsBlacklisted(target) {
		t.Error("blacklist entry lost across reload")
	}
}
