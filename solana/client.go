package aireg_protocol

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config configures a Client.
type Config struct {
	// RPCURL overrides the cluster's default endpoint.
	RPCURL            string
	Cluster           Cluster
	Commitment        rpc.CommitmentType
	RequestsPerSecond float64
	Retry             RetryPolicy
	// ConfirmTimeout enables confirmation polling after a send when positive.
	ConfirmTimeout time.Duration
	Logger         *zap.Logger
	// Registerer receives the client's collectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

// DefaultConfig returns a devnet configuration at confirmed commitment.
func DefaultConfig() Config {
	return Config{
		Cluster:    ClusterDevnet,
		Commitment: rpc.CommitmentConfirmed,
		Retry:      DefaultRetryPolicy(),
	}
}

// Validate checks the enumerations and numeric bounds.
func (c Config) Validate() error {
	if _, err := ParseCluster(string(c.Cluster)); err != nil {
		return err
	}
	if _, err := ParseCommitment(string(c.Commitment)); err != nil {
		return err
	}
	if c.RequestsPerSecond < 0 {
		return &ValidationError{Field: "rps", Constraint: "must not be negative"}
	}
	if c.Retry.MaxAttempts < 0 {
		return &ValidationError{Field: "max_attempts", Constraint: "must not be negative"}
	}
	if c.ConfirmTimeout < 0 {
		return &ValidationError{Field: "confirm_timeout", Constraint: "must not be negative"}
	}
	return nil
}

// Endpoint returns the RPC URL in effect.
func (c Config) Endpoint() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return c.Cluster.Addresses().DefaultRPC
}

// Client is the entry point to the agent and MCP server registries.
type Client struct {
	cfg     Config
	addrs   Addresses
	signer  solana.PrivateKey
	logger  *zap.Logger
	metrics *Metrics
	sleeper Sleeper
	http    *http.Client

	mu        sync.Mutex
	transport Transport
	payments  *PaymentManager
	closed    bool
}

type ClientOption func(*Client)

// WithTransport replaces the lazily dialed RPC transport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) { c.transport = t }
}

// WithClientSleeper replaces the wall-clock sleeper used for backoff and streams.
func WithClientSleeper(s Sleeper) ClientOption {
	return func(c *Client) { c.sleeper = s }
}

// WithHTTPClient replaces the client used to check MCP server endpoints.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithAddresses overrides the cluster's program and mint addresses.
func WithAddresses(a Addresses) ClientOption {
	return func(c *Client) { c.addrs = a }
}

// NewClient creates a Client. A nil signer makes the client read-only.
func NewClient(cfg Config, signer solana.PrivateKey, opts ...ClientOption) (*Client, error) {
	if cfg.Cluster == "" {
		cfg.Cluster = ClusterDevnet
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cluster, _ := ParseCluster(string(cfg.Cluster))
	cfg.Cluster = cluster
	cfg.Retry = cfg.Retry.normalized()

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:     cfg,
		addrs:   cluster.Addresses(),
		signer:  signer,
		logger:  logger,
		sleeper: RealSleeper,
		http:    &http.Client{Timeout: DefaultPingTimeout},
	}
	if cfg.Registerer != nil {
		c.metrics = NewMetrics(cfg.Registerer)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Addresses returns the program and token addresses in use.
func (c *Client) Addresses() Addresses { return c.addrs }

// Logger returns the client logger.
func (c *Client) Logger() *zap.Logger { return c.logger }

// Transport returns the RPC handle, creating it on first use.
func (c *Client) Transport() (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &ConnectionError{Endpoint: c.cfg.Endpoint(), Op: "dial", Err: fmt.Errorf("client is closed")}
	}
	if c.transport == nil {
		c.logger.Debug("creating rpc transport",
			zap.String("endpoint", c.cfg.Endpoint()),
			zap.String("commitment", string(c.cfg.Commitment)),
		)
		c.transport = NewRPCTransport(c.cfg.Endpoint(), c.cfg.Commitment, c.cfg.RequestsPerSecond)
	}
	return c.transport, nil
}

// Close stops payment streams and releases the RPC handle. Calling Close
// more than once is safe.
func (c *Client) Close() error {
	c.mu.Lock()
	payments := c.payments
	c.mu.Unlock()
	// Streams use the transport until they exit.
	if payments != nil {
		_ = payments.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Payments returns the client's payment manager, created on first use.
func (c *Client) Payments() *PaymentManager {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payments == nil {
		c.payments = NewPaymentManager(c)
	}
	return c.payments
}

// Signer returns the signing key or a validation error for read-only clients.
func (c *Client) Signer() (solana.PrivateKey, error) {
	if len(c.signer) == 0 {
		return nil, &ValidationError{Field: "signer", Constraint: "a keypair is required for this operation"}
	}
	return c.signer, nil
}

func (c *Client) submitter(t Transport) *Submitter {
	opts := []SubmitterOption{
		WithSleeper(c.sleeper),
		WithSubmitLogger(c.logger.With(zap.String("component", "submitter"))),
		WithSubmitMetrics(c.metrics),
	}
	if c.cfg.ConfirmTimeout > 0 {
		opts = append(opts, WithConfirmation(ConfirmOptions{
			Timeout: c.cfg.ConfirmTimeout,
			Level:   ConfirmationLevel(c.cfg.Commitment),
		}))
	}
	return NewSubmitter(t, c.cfg.Retry, opts...)
}

// Submit signs instructions with the client signer and runs them through the
// retrying submitter.
func (c *Client) Submit(ctx context.Context, instructions ...solana.Instruction) (*Result, error) {
	signer, err := c.Signer()
	if err != nil {
		return nil, err
	}
	t, err := c.Transport()
	if err != nil {
		return nil, err
	}
	env, err := NewEnvelope(instructions, signer)
	if err != nil {
		return nil, err
	}
	return c.submitter(t).Submit(ctx, env)
}

// Simulate runs instructions through preflight simulation without submitting.
// A simulated program failure is reported in the result, not as an error.
func (c *Client) Simulate(ctx context.Context, instructions ...solana.Instruction) (*SimulationResult, error) {
	signer, err := c.Signer()
	if err != nil {
		return nil, err
	}
	t, err := c.Transport()
	if err != nil {
		return nil, err
	}
	env, err := NewEnvelope(instructions, signer)
	if err != nil {
		return nil, err
	}
	hash, err := t.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := env.Sign(hash)
	if err != nil {
		return nil, err
	}
	return t.SimulateTransaction(ctx, tx)
}

// GetBalance returns the lamport balance of owner.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	t, err := c.Transport()
	if err != nil {
		return 0, err
	}
	return t.GetBalance(ctx, owner)
}

// GetTokenAccount returns the owner's associated token account for the
// registry token, or nil when it does not exist.
func (c *Client) GetTokenAccount(ctx context.Context, owner solana.PublicKey) (*TokenAccount, error) {
	t, err := c.Transport()
	if err != nil {
		return nil, err
	}
	ata, err := AssociatedTokenAddress(owner, c.addrs.TokenMint)
	if err != nil {
		return nil, err
	}
	data, err := t.GetAccountData(ctx, ata)
	if err != nil {
		return nil, fmt.Errorf("failed to get token account: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return DecodeTokenAccount(data)
}

// Agents returns the agent registry façade.
func (c *Client) Agents() *AgentRegistry {
	return &AgentRegistry{client: c, builder: NewAgentBuilder(c.addrs.AgentRegistry)}
}

// McpServers returns the MCP server registry façade.
func (c *Client) McpServers() *McpServerRegistry {
	return &McpServerRegistry{client: c, builder: NewMcpServerBuilder(c.addrs.McpServerRegistry)}
}
