package aireg_protocol

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultStreamInterval is the spacing between stream payments.
const DefaultStreamInterval = 10 * time.Second

// MaxStreamPayments bounds the installments of a single stream.
const MaxStreamPayments = 100_000

// streamBuffer is the number of installment reports held for a slow reader.
const streamBuffer = 16

// ErrManagerClosed is returned by PaymentManager methods after Close.
var ErrManagerClosed = errors.New("payment manager is closed")

// PaymentManager moves registry tokens from the client signer to service
// providers. A prepaid escrow is an SPL delegation: the provider is approved
// to draw up to the escrowed amount from the payer's token account.
type PaymentManager struct {
	client *Client
	logger *zap.Logger

	mu      sync.Mutex
	streams map[uuid.UUID]*PaymentStream
	wg      sync.WaitGroup
	closed  bool
}

// NewPaymentManager creates a manager bound to c.
func NewPaymentManager(c *Client) *PaymentManager {
	return &PaymentManager{
		client:  c,
		logger:  c.logger.With(zap.String("component", "payments")),
		streams: make(map[uuid.UUID]*PaymentStream),
	}
}

func (m *PaymentManager) mint() solana.PublicKey { return m.client.addrs.TokenMint }

func positiveUnits(tokens float64) (uint64, error) {
	units, err := TokensToBaseUnits(tokens)
	if err != nil {
		return 0, err
	}
	if units == 0 {
		return 0, &ValidationError{Field: "amount", Constraint: "must be positive"}
	}
	return units, nil
}

// requireBalance returns the payer's token account after checking it holds
// at least required base units.
func (m *PaymentManager) requireBalance(ctx context.Context, payer solana.PublicKey, required uint64) (*TokenAccount, error) {
	acct, err := m.client.GetTokenAccount(ctx, payer)
	if err != nil {
		return nil, err
	}
	var available uint64
	if acct != nil {
		available = acct.Amount
	}
	if available < required {
		return nil, &InsufficientFundsError{Required: required, Available: available, Mint: m.mint()}
	}
	return acct, nil
}

// CreatePrepayEscrow approves provider to draw amount tokens. It replaces any
// allowance previously granted from the same token account.
func (m *PaymentManager) CreatePrepayEscrow(ctx context.Context, provider solana.PublicKey, amount float64) (*Result, error) {
	units, err := positiveUnits(amount)
	if err != nil {
		return nil, err
	}
	return m.approve(ctx, provider, units, "escrow")
}

func (m *PaymentManager) approve(ctx context.Context, provider solana.PublicKey, units uint64, kind string) (*Result, error) {
	_, payer, err := m.client.owner()
	if err != nil {
		return nil, err
	}
	if _, err := m.requireBalance(ctx, payer, units); err != nil {
		return nil, err
	}
	source, err := AssociatedTokenAddress(payer, m.mint())
	if err != nil {
		return nil, err
	}
	ix, err := token.NewApproveCheckedInstruction(units, TokenDecimals, source, m.mint(), provider, payer, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build approve instruction: %w", err)
	}
	res, err := m.client.Submit(ctx, ix)
	if err != nil {
		return nil, err
	}
	m.client.metrics.payment(kind, units)
	m.logger.Info("escrow allowance set",
		zap.Stringer("provider", provider),
		zap.Uint64("base_units", units),
		zap.Stringer("signature", res.Signature),
	)
	return res, nil
}

// PayPerUsage transfers amount tokens to provider, creating the provider's
// token account first when it does not exist.
func (m *PaymentManager) PayPerUsage(ctx context.Context, provider solana.PublicKey, amount float64) (*Result, error) {
	units, err := positiveUnits(amount)
	if err != nil {
		return nil, err
	}
	return m.transfer(ctx, provider, units)
}

func (m *PaymentManager) transfer(ctx context.Context, provider solana.PublicKey, units uint64) (*Result, error) {
	_, payer, err := m.client.owner()
	if err != nil {
		return nil, err
	}
	if _, err := m.requireBalance(ctx, payer, units); err != nil {
		return nil, err
	}
	source, err := AssociatedTokenAddress(payer, m.mint())
	if err != nil {
		return nil, err
	}
	destination, err := AssociatedTokenAddress(provider, m.mint())
	if err != nil {
		return nil, err
	}
	t, err := m.client.Transport()
	if err != nil {
		return nil, err
	}
	existing, err := t.GetAccountData(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider token account: %w", err)
	}

	var instructions []solana.Instruction
	if existing == nil {
		create, err := associatedtokenaccount.NewCreateInstruction(payer, provider, m.mint()).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("failed to build create account instruction: %w", err)
		}
		instructions = append(instructions, create)
	}
	ix, err := token.NewTransferCheckedInstruction(units, TokenDecimals, source, m.mint(), destination, payer, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer instruction: %w", err)
	}
	instructions = append(instructions, ix)

	res, err := m.client.Submit(ctx, instructions...)
	if err != nil {
		return nil, err
	}
	m.client.metrics.payment("usage", units)
	m.logger.Info("usage payment sent",
		zap.Stringer("provider", provider),
		zap.Uint64("base_units", units),
		zap.Stringer("signature", res.Signature),
	)
	return res, nil
}

// EscrowBalance returns the base units provider may still draw from payer.
func (m *PaymentManager) EscrowBalance(ctx context.Context, payer, provider solana.PublicKey) (uint64, error) {
	acct, err := m.client.GetTokenAccount(ctx, payer)
	if err != nil {
		return 0, err
	}
	if acct == nil || acct.Delegate == nil || !acct.Delegate.Equals(provider) {
		return 0, nil
	}
	return min(acct.DelegatedAmount, acct.Amount), nil
}

// WithdrawFromEscrow lowers the provider's allowance by amount, revoking it
// entirely when nothing would remain.
func (m *PaymentManager) WithdrawFromEscrow(ctx context.Context, provider solana.PublicKey, amount float64) (*Result, error) {
	units, err := positiveUnits(amount)
	if err != nil {
		return nil, err
	}
	_, payer, err := m.client.owner()
	if err != nil {
		return nil, err
	}
	balance, err := m.EscrowBalance(ctx, payer, provider)
	if err != nil {
		return nil, err
	}
	if units > balance {
		return nil, &InsufficientFundsError{Required: units, Available: balance, Mint: m.mint()}
	}
	if units < balance {
		return m.approve(ctx, provider, balance-units, "escrow_reduce")
	}

	source, err := AssociatedTokenAddress(payer, m.mint())
	if err != nil {
		return nil, err
	}
	ix, err := token.NewRevokeInstruction(source, payer, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build revoke instruction: %w", err)
	}
	res, err := m.client.Submit(ctx, ix)
	if err != nil {
		return nil, err
	}
	m.logger.Info("escrow revoked",
		zap.Stringer("provider", provider),
		zap.Stringer("signature", res.Signature),
	)
	return res, nil
}

// StreamPayment reports one stream installment.
type StreamPayment struct {
	Seq       int
	BaseUnits uint64
	Signature solana.Signature
	Err       error
}

// PaymentStream pays a provider in fixed installments from a background goroutine.
type PaymentStream struct {
	ID       uuid.UUID
	Provider solana.PublicKey
	// PerPayment is the base units paid each interval.
	PerPayment uint64
	Interval   time.Duration
	Count      int

	payments chan StreamPayment
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

// Payments yields one value per installment and is closed when the stream ends.
// The stream pauses while the channel is full, so callers should drain it.
func (s *PaymentStream) Payments() <-chan StreamPayment { return s.payments }

func (s *PaymentStream) report(ctx context.Context, p StreamPayment) bool {
	select {
	case s.payments <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop cancels the stream. A payment already being sent completes first.
func (s *PaymentStream) Stop() { s.cancel() }

// Wait blocks until the stream ends and returns the error that stopped it,
// nil after all installments or an explicit Stop.
func (s *PaymentStream) Wait() error {
	<-s.done
	return s.err
}

// CreatePaymentStream pays ratePerSecond*interval tokens every interval until
// duration has elapsed. The full cost is checked against the balance up front.
func (m *PaymentManager) CreatePaymentStream(ctx context.Context, provider solana.PublicKey, ratePerSecond float64, duration, interval time.Duration) (*PaymentStream, error) {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	if ratePerSecond <= 0 {
		return nil, &ValidationError{Field: "rate_per_second", Constraint: "must be positive"}
	}
	if duration < interval {
		return nil, &ValidationError{Field: "duration", Constraint: fmt.Sprintf("must be at least one interval (%s)", interval)}
	}
	perPayment, err := positiveUnits(ratePerSecond * interval.Seconds())
	if err != nil {
		return nil, err
	}
	if duration/interval > MaxStreamPayments {
		return nil, &ValidationError{Field: "duration", Constraint: fmt.Sprintf("at most %d payments per stream", MaxStreamPayments)}
	}
	count := int(duration / interval)
	if uint64(count) > math.MaxUint64/perPayment {
		return nil, &ValidationError{Field: "rate_per_second", Constraint: "total stream cost overflows"}
	}
	_, payer, err := m.client.owner()
	if err != nil {
		return nil, err
	}
	if _, err := m.requireBalance(ctx, payer, perPayment*uint64(count)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream := &PaymentStream{
		ID:         uuid.New(),
		Provider:   provider,
		PerPayment: perPayment,
		Interval:   interval,
		Count:      count,
		payments:   make(chan StreamPayment, min(count, streamBuffer)),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	m.streams[stream.ID] = stream
	m.wg.Add(1)
	go m.runStream(sctx, stream)

	m.logger.Info("payment stream started",
		zap.String("stream_id", stream.ID.String()),
		zap.Stringer("provider", provider),
		zap.Uint64("per_payment", perPayment),
		zap.Duration("interval", interval),
		zap.Int("payments", count),
	)
	return stream, nil
}

func (m *PaymentManager) runStream(ctx context.Context, s *PaymentStream) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.streams, s.ID)
		m.mu.Unlock()
		s.cancel()
		close(s.payments)
		close(s.done)
	}()

	for seq := 1; seq <= s.Count; seq++ {
		if err := m.client.sleeper.Sleep(ctx, s.Interval); err != nil {
			m.logger.Info("payment stream stopped",
				zap.String("stream_id", s.ID.String()),
				zap.Int("paid", seq-1),
			)
			return
		}
		res, err := m.transfer(ctx, s.Provider, s.PerPayment)
		if err != nil && ctx.Err() != nil {
			return
		}
		if err != nil {
			s.err = err
			s.report(ctx, StreamPayment{Seq: seq, BaseUnits: s.PerPayment, Err: err})
			m.logger.Warn("payment stream failed",
				zap.String("stream_id", s.ID.String()),
				zap.Int("seq", seq),
				zap.Error(err),
			)
			return
		}
		if !s.report(ctx, StreamPayment{Seq: seq, BaseUnits: s.PerPayment, Signature: res.Signature}) {
			return
		}
	}
	m.logger.Info("payment stream completed", zap.String("stream_id", s.ID.String()))
}

// Stream returns an active stream by id.
func (m *PaymentManager) Stream(id uuid.UUID) (*PaymentStream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[id]
	return s, ok
}

// StopStream cancels the stream with id and waits for it to end.
func (m *PaymentManager) StopStream(id uuid.UUID) error {
	s, ok := m.Stream(id)
	if !ok {
		return fmt.Errorf("payment stream %s not found", id)
	}
	s.Stop()
	return s.Wait()
}

// Close stops every active stream and waits for them to finish.
func (m *PaymentManager) Close() error {
	m.mu.Lock()
	m.closed = true
	for _, s := range m.streams {
		s.Stop()
	}
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}
