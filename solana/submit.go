package aireg_protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// State is a submission state.
type State int

const (
	StatePreparing State = iota
	StateSubmitting
	StateConfirmed
	StateRetrying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePreparing:
		return "preparing"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrorClass decides what the submitter does after a failed attempt.
type ErrorClass int

const (
	ClassTransient ErrorClass = iota
	ClassStaleHash
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassStaleHash:
		return "stale_hash"
	case ClassFatal:
		return "fatal"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Classifier maps an attempt error to an ErrorClass.
type Classifier func(err error) ErrorClass

// fatalMarkers are rejections that no amount of resubmission can fix.
var fatalMarkers = []string{
	"custom program error",
	"insufficient funds",
	"insufficient lamports",
	"already in use",
	"invalid account data",
	"missing required signature",
}

// DefaultClassifier treats stale hashes, connection failures and unknown
// errors as retryable. Local validation and any rejection reported by the
// node (a TransactionError) are fatal.
func DefaultClassifier(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassFatal
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDecode):
		return ClassFatal
	case IsStaleBlockhash(err):
		return ClassStaleHash
	case errors.Is(err, ErrConnection):
		return ClassTransient
	}
	// The node evaluated and rejected the transaction; resubmitting the same
	// message cannot change the outcome.
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return ClassFatal
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return ClassFatal
		}
	}
	return ClassTransient
}

// RetryPolicy is the attempt ceiling, classifier and backoff schedule.
type RetryPolicy struct {
	MaxAttempts int
	// SettleDelay is waited before fetching a new blockhash on attempts 2+.
	SettleDelay   time.Duration
	StaleBase     time.Duration
	StaleStep     time.Duration
	TransientStep time.Duration
	Classify      Classifier
}

// DefaultRetryPolicy returns 5 attempts, a 0.5s settle delay, 2s+1s*n for
// stale hashes and 1s*(n+1) for everything else.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		SettleDelay:   500 * time.Millisecond,
		StaleBase:     2 * time.Second,
		StaleStep:     time.Second,
		TransientStep: time.Second,
		Classify:      DefaultClassifier,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Classify == nil {
		p.Classify = def.Classify
	}
	return p
}

// Backoff returns the delay after the failed attempt with 0-based index attempt.
func (p RetryPolicy) Backoff(class ErrorClass, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if class == ClassStaleHash {
		return p.StaleBase + p.StaleStep*time.Duration(attempt)
	}
	return p.TransientStep * time.Duration(attempt+1)
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// RealSleeper sleeps on the wall clock.
var RealSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// Envelope holds a transaction in its canonical unsigned form. Every attempt
// decodes a fresh message from these bytes and signs it; nothing signed is reused.
type Envelope struct {
	message []byte
	signers map[solana.PublicKey]solana.PrivateKey
	payer   solana.PublicKey
}

// NewEnvelope compiles instructions with payer as fee payer. Every required
// signer must be among signers.
func NewEnvelope(instructions []solana.Instruction, payer solana.PrivateKey, extra ...solana.PrivateKey) (*Envelope, error) {
	tx, err := solana.NewTransaction(instructions, solana.Hash{}, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	raw, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}
	env := &Envelope{
		message: raw,
		signers: map[solana.PublicKey]solana.PrivateKey{payer.PublicKey(): payer},
		payer:   payer.PublicKey(),
	}
	for _, k := range extra {
		env.signers[k.PublicKey()] = k
	}
	return env, nil
}

// Payer returns the fee payer.
func (e *Envelope) Payer() solana.PublicKey { return e.payer }

// Sign rebuilds the transaction from the canonical bytes with hash as its
// recent blockhash and signs it.
func (e *Envelope) Sign(hash solana.Hash) (*solana.Transaction, error) {
	var msg solana.Message
	if err := msg.UnmarshalWithDecoder(bin.NewBinDecoder(e.message)); err != nil {
		return nil, fmt.Errorf("failed to rebuild message: %w", err)
	}
	msg.RecentBlockhash = hash
	tx := &solana.Transaction{Message: msg}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if k, ok := e.signers[key]; ok {
			return &k
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// Transition is reported to observers on every state change.
type Transition struct {
	Attempt int
	From    State
	To      State
	Err     error
	Delay   time.Duration
}

// Result describes a confirmed submission.
type Result struct {
	Signature solana.Signature
	Attempts  int
	Blockhash solana.Hash
}

// ConfirmOptions enables polling for the signature after a successful send.
// A zero Timeout returns as soon as the node accepts the transaction.
type ConfirmOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Level        rpc.ConfirmationStatusType
}

// Submitter gets a transaction accepted by the network, refreshing the
// blockhash and re-signing on every attempt.
type Submitter struct {
	transport Transport
	policy    RetryPolicy
	sleeper   Sleeper
	logger    *zap.Logger
	metrics   *Metrics
	observer  func(Transition)
	confirm   ConfirmOptions
}

type SubmitterOption func(*Submitter)

func WithSleeper(s Sleeper) SubmitterOption {
	return func(sub *Submitter) { sub.sleeper = s }
}

func WithSubmitLogger(l *zap.Logger) SubmitterOption {
	return func(sub *Submitter) {
		if l != nil {
			sub.logger = l
		}
	}
}

func WithSubmitMetrics(m *Metrics) SubmitterOption {
	return func(sub *Submitter) { sub.metrics = m }
}

// WithObserver registers a callback invoked synchronously on every transition.
func WithObserver(fn func(Transition)) SubmitterOption {
	return func(sub *Submitter) { sub.observer = fn }
}

func WithConfirmation(c ConfirmOptions) SubmitterOption {
	return func(sub *Submitter) { sub.confirm = c }
}

func NewSubmitter(transport Transport, policy RetryPolicy, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		transport: transport,
		policy:    policy.normalized(),
		sleeper:   RealSleeper,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.confirm.PollInterval <= 0 {
		s.confirm.PollInterval = 500 * time.Millisecond
	}
	if s.confirm.Level == "" {
		s.confirm.Level = rpc.ConfirmationStatusConfirmed
	}
	return s
}

// Policy returns the effective retry policy.
func (s *Submitter) Policy() RetryPolicy { return s.policy }

type run struct {
	s     *Submitter
	state State
}

func (r *run) move(attempt int, to State, err error, delay time.Duration) {
	t := Transition{Attempt: attempt, From: r.state, To: to, Err: err, Delay: delay}
	r.state = to
	r.s.metrics.transition(to)
	if r.s.observer != nil {
		r.s.observer(t)
	}
}

// Submit runs the state machine for env. Cancellation is honored only between
// network sends: once a send is issued its result is awaited.
func (s *Submitter) Submit(ctx context.Context, env *Envelope) (*Result, error) {
	r := &run{s: s, state: StatePreparing}
	r.move(0, StatePreparing, nil, 0)

	var last error
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleeper.Sleep(ctx, s.policy.SettleDelay); err != nil {
				return nil, s.cancelled(r, attempt, last, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, s.cancelled(r, attempt, last, err)
		}
		r.move(attempt+1, StateSubmitting, nil, 0)

		res, err := s.attempt(ctx, env)
		if err == nil {
			res.Attempts = attempt + 1
			if err := s.awaitConfirmation(ctx, res.Signature); err != nil {
				r.move(attempt+1, StateFailed, err, 0)
				return nil, err
			}
			r.move(attempt+1, StateConfirmed, nil, 0)
			s.logger.Info("transaction confirmed",
				zap.Stringer("signature", res.Signature),
				zap.Int("attempts", res.Attempts),
			)
			return res, nil
		}

		last = err
		class := s.policy.Classify(err)
		if class == ClassFatal {
			s.logger.Debug("attempt failed with non-retryable error",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			r.move(attempt+1, StateFailed, err, 0)
			return nil, err
		}
		if attempt == s.policy.MaxAttempts-1 {
			break
		}

		delay := s.policy.Backoff(class, attempt)
		s.logger.Warn("transaction attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", s.policy.MaxAttempts),
			zap.Stringer("class", class),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		s.metrics.delay(class, delay)
		r.move(attempt+1, StateRetrying, err, delay)
		if err := s.sleeper.Sleep(ctx, delay); err != nil {
			return nil, s.cancelled(r, attempt+1, last, err)
		}
	}

	exhausted := &RetryExhaustedError{Attempts: s.policy.MaxAttempts, Last: last}
	s.logger.Warn("transaction retries exhausted",
		zap.Int("attempts", s.policy.MaxAttempts),
		zap.Error(last),
	)
	r.move(s.policy.MaxAttempts, StateFailed, exhausted, 0)
	return nil, exhausted
}

// attempt fetches a fresh blockhash, signs and sends once.
func (s *Submitter) attempt(ctx context.Context, env *Envelope) (*Result, error) {
	hash, err := s.transport.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := env.Sign(hash)
	if err != nil {
		return nil, &ValidationError{Field: "transaction", Constraint: err.Error()}
	}
	s.metrics.attempt()
	s.logger.Debug("sending transaction",
		zap.Stringer("blockhash", hash),
		zap.Stringer("signature", tx.Signatures[0]),
	)
	sig, err := s.transport.SendTransaction(context.WithoutCancel(ctx), tx)
	if err != nil {
		return nil, err
	}
	return &Result{Signature: sig, Blockhash: hash}, nil
}

func (s *Submitter) cancelled(r *run, attempts int, last, err error) error {
	out := fmt.Errorf("submission cancelled after %d attempts: %w", attempts, err)
	if last != nil {
		out = fmt.Errorf("submission cancelled after %d attempts (last error: %v): %w", attempts, last, err)
	}
	r.move(attempts, StateFailed, out, 0)
	return out
}

// awaitConfirmation polls the signature until it reaches the configured level.
// A sent transaction is never resubmitted from here: a timeout is terminal.
func (s *Submitter) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	if s.confirm.Timeout <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.confirm.Timeout)
	defer cancel()
	for {
		st, err := s.transport.SignatureStatus(ctx, sig)
		if err == nil && st != nil {
			if st.Err != nil {
				return &TransactionError{Signature: &sig, Err: fmt.Errorf("%v", st.Err)}
			}
			if confirmationReached(st.ConfirmationStatus, s.confirm.Level) {
				return nil
			}
		}
		if err := s.sleeper.Sleep(ctx, s.confirm.PollInterval); err != nil {
			return &TransactionError{Signature: &sig, Err: fmt.Errorf("not confirmed at %s: %w", s.confirm.Level, err)}
		}
	}
}

func confirmationRank(c rpc.ConfirmationStatusType) int {
	switch c {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	}
	return 0
}

func confirmationReached(have, want rpc.ConfirmationStatusType) bool {
	return confirmationRank(have) > 0 && confirmationRank(have) >= confirmationRank(want)
}

// ConfirmationLevel maps a commitment onto the status a signature must reach.
func ConfirmationLevel(c rpc.CommitmentType) rpc.ConfirmationStatusType {
	switch c {
	case rpc.CommitmentProcessed:
		return rpc.ConfirmationStatusProcessed
	case rpc.CommitmentFinalized:
		return rpc.ConfirmationStatusFinalized
	}
	return rpc.ConfirmationStatusConfirmed
}
