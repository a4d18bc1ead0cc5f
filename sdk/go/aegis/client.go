package aegis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aegischain/aegisd/internal/preguard"
	"github.com/aegischain/aegisd/internal/threatdb"
)

const defaultBaseURL = "http://127.0.0.1:8547"

// Client submits transactions to the aegisd daemon, running the local
// pre-submission checks first. Safe for concurrent use.
type Client struct {
	cfg  clientConfig
	db   *threatdb.DB
	http *http.Client
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{baseURL: defaultBaseURL}
	for _, o := range opts {
		o(&cfg)
	}

	db, err := threatdb.Load(cfg.threatsPath)
	if err != nil {
		return nil, fmt.Errorf("aegis: failed to load threat patterns: %w", err)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{cfg: cfg, db: db, http: hc}, nil
}

// Precheck runs the local checks only. No network, no state.
func (c *Client) Precheck(tx Tx) PrecheckResult {
	r := preguard.Evaluate(tx.candidate(), c.db)
	return PrecheckResult{
		Passed:         r.Passed,
		RiskLevel:      string(r.RiskTier),
		Flags:          r.Flags,
		Warnings:       r.Warnings,
		Recommendation: r.Recommendation,
	}
}

// Validate evaluates a transaction. The local precheck runs first (unless
// disabled); a failing precheck blocks without contacting the daemon. The
// returned Verdict is always usable: transport failures yield a BLOCKED
// verdict alongside the error, so a caller that only consults the verdict
// still refuses to execute.
func (c *Client) Validate(ctx context.Context, tx Tx) (Verdict, error) {
	if err := tx.candidate().Validate(); err != nil {
		return blockedVerdict(err.Error()), err
	}

	if !c.cfg.skipPrecheck {
		if pre := c.Precheck(tx); !pre.Passed {
			return Verdict{
				Decision:     Blocked,
				RiskLevel:    pre.RiskLevel,
				BlockReason:  "Local precheck failed: " + strings.Join(pre.Flags, "; "),
				ChecksFailed: pre.Flags,
			}, nil
		}
	}

	var v Verdict
	if err := c.post(ctx, "/api/v1/transactions/validate", tx, &v); err != nil {
		return blockedVerdict("guardrail unreachable: " + err.Error()), err
	}
	return v, nil
}

// ReportOutcome reports a settled transaction so the daemon can adjust the
// agent's trust score.
func (c *Client) ReportOutcome(ctx context.Context, r OutcomeReport) (OutcomeResult, error) {
	body := map[string]any{
		"tx_id":          r.TxID,
		"agent_address":  r.AgentAddress,
		"target_address": r.Tx.TargetAddress,
		"value_eth":      r.Tx.ValueETH,
		"intent":         r.Tx.Intent,
		"decision":       string(r.Decision),
		"ai_explanation": r.Explanation,
	}
	// Omitted entirely at zero so the daemon resolves the stored score.
	if r.CurrentTrust > 0 {
		body["current_trust_score"] = r.CurrentTrust
	}
	var res OutcomeResult
	if err := c.post(ctx, "/api/v1/outcome", body, &res); err != nil {
		return OutcomeResult{}, err
	}
	return res, nil
}

// post sends one JSON request and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("aegis: marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("aegis: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("aegis: daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("aegis: daemon returned %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}

func blockedVerdict(reason string) Verdict {
	return Verdict{
		Decision:    Blocked,
		RiskLevel:   "CRITICAL",
		BlockReason: reason,
	}
}
