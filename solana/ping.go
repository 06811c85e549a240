package aireg_protocol

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// DefaultPingTimeout bounds a single endpoint check.
const DefaultPingTimeout = 10 * time.Second

// PingResult reports whether an MCP server endpoint answered over HTTP.
// An unreachable endpoint is a result, not an error.
type PingResult struct {
	ServerID   string        `json:"server_id"`
	Endpoint   string        `json:"endpoint"`
	Available  bool          `json:"available"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	CheckedAt  time.Time     `json:"checked_at"`
	Error      string        `json:"error,omitempty"`
}

// Ping looks up the server entry and checks its endpoint. HEAD is tried
// first; servers that refuse it get a GET. Any status below 500 counts as
// available.
func (r *McpServerRegistry) Ping(ctx context.Context, serverID string, owner solana.PublicKey) (*PingResult, error) {
	entry, err := r.Get(ctx, serverID, owner)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &EntryNotFoundError{Kind: KindMcpServer, ID: serverID, Owner: owner}
	}
	u, err := url.Parse(entry.EndpointURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &ValidationError{Field: "endpoint_url", Constraint: "only http and https endpoints can be checked"}
	}

	res := &PingResult{ServerID: serverID, Endpoint: entry.EndpointURL, CheckedAt: time.Now().UTC()}
	start := time.Now()
	code, err := r.request(ctx, http.MethodHead, entry.EndpointURL)
	if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = r.request(ctx, http.MethodGet, entry.EndpointURL)
	}
	res.Latency = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res.Error = err.Error()
	} else {
		res.StatusCode = code
		res.Available = code < http.StatusInternalServerError
		if !res.Available {
			res.Error = http.StatusText(code)
		}
	}
	r.client.logger.Debug("mcp server pinged",
		zap.String("server_id", serverID),
		zap.String("endpoint", entry.EndpointURL),
		zap.Bool("available", res.Available),
		zap.Duration("latency", res.Latency),
	)
	return res, nil
}

func (r *McpServerRegistry) request(ctx context.Context, method, endpoint string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	resp, err := r.client.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}
