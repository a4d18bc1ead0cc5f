// Package registry resolves agent trust scores from an on-chain
// AgentRegistry contract over plain JSON-RPC. It is a secondary trust
// source: the engine consults it only when the local store has no record,
// and any failure here falls through to the conservative default.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aegischain/aegisd/internal/model"
)

// defaultSelector is the 4-byte selector for getTrustScore(address).
// Overridable in config for registries with a different ABI.
const defaultSelector = "0x87d4bd99"

const defaultTimeout = 3 * time.Second

// Config points at the chain endpoint and registry contract.
// An empty RPCURL disables the source.
type Config struct {
	RPCURL   string        `yaml:"rpc_url"`
	Contract string        `yaml:"contract"`
	Selector string        `yaml:"selector"`
	Timeout  time.Duration `yaml:"-"`
}

// Client queries the registry contract. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New builds a Client, or nil when no RPC endpoint is configured.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.RPCURL == "" || cfg.Contract == "" {
		return nil
	}
	if cfg.Selector == "" {
		cfg.Selector = defaultSelector
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// TrustScore calls getTrustScore(agent) on the registry contract.
// Satisfies the engine's TrustSource interface.
func (c *Client) TrustScore(ctx context.Context, agent string) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("registry: disabled")
	}

	data, err := callData(c.cfg.Selector, agent)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params: []any{
			map[string]string{"to": c.cfg.Contract, "data": data},
			"latest",
		},
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("registry: rpc call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("registry: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out rpcResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return 0, fmt.Errorf("registry: bad rpc response: %w", err)
	}
	if out.Error != nil {
		return 0, fmt.Errorf("registry: rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	return decodeTrust(out.Result)
}

// callData encodes selector + abi-padded address argument.
func callData(selector, agent string) (string, error) {
	addr := strings.TrimPrefix(model.NormalizeAddress(agent), "0x")
	if len(addr) != 40 {
		return "", fmt.Errorf("registry: malformed agent address %q", agent)
	}
	return selector + strings.Repeat("0", 24) + addr, nil
}

// decodeTrust parses the 32-byte uint256 return value into a clamped score.
func decodeTrust(result string) (int, error) {
	hexVal := strings.TrimPrefix(result, "0x")
	if hexVal == "" {
		return 0, fmt.Errorf("registry: empty result")
	}
	n, ok := new(big.Int).SetString(hexVal, 16)
	if !ok {
		return 0, fmt.Errorf("registry: non-hex result %q", result)
	}
	if !n.IsInt64() {
		return 100, nil
	}
	return model.ClampTrust(int(n.Int64())), nil
}
