package aireg_protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"golang.org/x/time/rate"
)

// Transport is the RPC surface the registry client depends on.
type Transport interface {
	// GetAccountData returns nil data and no error when the account does not exist.
	GetAccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error)
	GetProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) ([]KeyedAccount, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// SignatureStatus returns nil when the node has not seen the signature.
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
	GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	GetSignatures(ctx context.Context, addr solana.PublicKey, limit int) ([]SignatureInfo, error)
	GetTransactionLogs(ctx context.Context, sig solana.Signature) (*TransactionDetail, error)
}

type KeyedAccount struct {
	Address solana.PublicKey
	Data    []byte
}

type SimulationResult struct {
	Err           any
	Logs          []string
	UnitsConsumed uint64
}

type SignatureStatus struct {
	Slot               uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	Err                any
}

type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime *time.Time
	Failed    bool
	Memo      string
}

// RawInstruction is a top-level instruction of a fetched transaction.
type RawInstruction struct {
	ProgramID solana.PublicKey
	Data      []byte
}

type TransactionDetail struct {
	Signature    solana.Signature
	Slot         uint64
	BlockTime    *time.Time
	Err          any
	Logs         []string
	Instructions []RawInstruction
}

// rpcNodeUnhealthy is the JSON-RPC code a node returns while it is behind;
// the request never reached transaction processing.
const rpcNodeUnhealthy = -32005

// RPCTransport implements Transport on top of a JSON-RPC node.
type RPCTransport struct {
	endpoint   string
	client     *rpc.Client
	limiter    *rate.Limiter
	commitment rpc.CommitmentType
}

// NewRPCTransport dials nothing; the HTTP client connects on first use.
// rps <= 0 disables client-side throttling.
func NewRPCTransport(endpoint string, commitment rpc.CommitmentType, rps float64) *RPCTransport {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RPCTransport{
		endpoint:   endpoint,
		client:     rpc.New(endpoint),
		limiter:    limiter,
		commitment: commitment,
	}
}

// Close releases the underlying HTTP client.
func (t *RPCTransport) Close() error {
	return t.client.Close()
}

func (t *RPCTransport) wait(ctx context.Context, op string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return &ConnectionError{Endpoint: t.endpoint, Op: op, Err: err}
	}
	return nil
}

func (t *RPCTransport) connErr(op string, err error) error {
	return &ConnectionError{Endpoint: t.endpoint, Op: op, Err: err}
}

func (t *RPCTransport) GetAccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	if err := t.wait(ctx, "getAccountInfo"); err != nil {
		return nil, err
	}
	resp, err := t.client.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: t.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, t.connErr("getAccountInfo", err)
	}
	if resp == nil || resp.Value == nil {
		return nil, nil
	}
	return resp.Value.Data.GetBinary(), nil
}

func (t *RPCTransport) GetProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) ([]KeyedAccount, error) {
	if err := t.wait(ctx, "getProgramAccounts"); err != nil {
		return nil, err
	}
	out, err := t.client.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: t.commitment,
		Filters:    filters,
	})
	if err != nil {
		return nil, t.connErr("getProgramAccounts", err)
	}
	accounts := make([]KeyedAccount, 0, len(out))
	for _, keyed := range out {
		if keyed == nil || keyed.Account == nil {
			continue
		}
		accounts = append(accounts, KeyedAccount{Address: keyed.Pubkey, Data: keyed.Account.Data.GetBinary()})
	}
	return accounts, nil
}

func (t *RPCTransport) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := t.wait(ctx, "getLatestBlockhash"); err != nil {
		return solana.Hash{}, err
	}
	resp, err := t.client.GetLatestBlockhash(ctx, t.commitment)
	if err != nil {
		return solana.Hash{}, t.connErr("getLatestBlockhash", err)
	}
	if resp == nil || resp.Value == nil {
		return solana.Hash{}, t.connErr("getLatestBlockhash", errors.New("empty response"))
	}
	return resp.Value.Blockhash, nil
}

// SendTransaction submits with preflight on and node-side retries off, so the
// only retry loop is the caller's.
func (t *RPCTransport) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := t.wait(ctx, "sendTransaction"); err != nil {
		return solana.Signature{}, err
	}
	noRetries := uint(0)
	sig, err := t.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: t.commitment,
		MaxRetries:          &noRetries,
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code != rpcNodeUnhealthy {
			return solana.Signature{}, &TransactionError{Logs: rpcErrorLogs(rpcErr), Err: err}
		}
		return solana.Signature{}, t.connErr("sendTransaction", err)
	}
	return sig, nil
}

func (t *RPCTransport) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	if err := t.wait(ctx, "simulateTransaction"); err != nil {
		return nil, err
	}
	resp, err := t.client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             t.commitment,
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		return nil, t.connErr("simulateTransaction", err)
	}
	if resp == nil || resp.Value == nil {
		return nil, t.connErr("simulateTransaction", errors.New("empty response"))
	}
	result := &SimulationResult{Err: resp.Value.Err, Logs: resp.Value.Logs}
	if resp.Value.UnitsConsumed != nil {
		result.UnitsConsumed = *resp.Value.UnitsConsumed
	}
	return result, nil
}

func (t *RPCTransport) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	if err := t.wait(ctx, "getSignatureStatuses"); err != nil {
		return nil, err
	}
	resp, err := t.client.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return nil, t.connErr("getSignatureStatuses", err)
	}
	if resp == nil || len(resp.Value) == 0 || resp.Value[0] == nil {
		return nil, nil
	}
	st := resp.Value[0]
	return &SignatureStatus{Slot: st.Slot, ConfirmationStatus: st.ConfirmationStatus, Err: st.Err}, nil
}

func (t *RPCTransport) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	if err := t.wait(ctx, "getBalance"); err != nil {
		return 0, err
	}
	resp, err := t.client.GetBalance(ctx, owner, t.commitment)
	if err != nil {
		return 0, t.connErr("getBalance", err)
	}
	return resp.Value, nil
}

func (t *RPCTransport) GetSignatures(ctx context.Context, addr solana.PublicKey, limit int) ([]SignatureInfo, error) {
	if err := t.wait(ctx, "getSignaturesForAddress"); err != nil {
		return nil, err
	}
	opts := &rpc.GetSignaturesForAddressOpts{Commitment: t.commitment}
	if limit > 0 {
		opts.Limit = &limit
	}
	out, err := t.client.GetSignaturesForAddressWithOpts(ctx, addr, opts)
	if err != nil {
		return nil, t.connErr("getSignaturesForAddress", err)
	}
	infos := make([]SignatureInfo, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		info := SignatureInfo{Signature: s.Signature, Slot: s.Slot, Failed: s.Err != nil}
		if s.BlockTime != nil {
			bt := s.BlockTime.Time()
			info.BlockTime = &bt
		}
		if s.Memo != nil {
			info.Memo = *s.Memo
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (t *RPCTransport) GetTransactionLogs(ctx context.Context, sig solana.Signature) (*TransactionDetail, error) {
	if err := t.wait(ctx, "getTransaction"); err != nil {
		return nil, err
	}
	maxVersion := uint64(0)
	resp, err := t.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     t.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, t.connErr("getTransaction", err)
	}
	if resp == nil {
		return nil, nil
	}
	detail := &TransactionDetail{Signature: sig, Slot: resp.Slot}
	if resp.BlockTime != nil {
		bt := resp.BlockTime.Time()
		detail.BlockTime = &bt
	}
	if resp.Meta != nil {
		detail.Err = resp.Meta.Err
		detail.Logs = resp.Meta.LogMessages
	}
	if resp.Transaction == nil {
		return detail, nil
	}
	tx, err := resp.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", sig, err)
	}
	for _, ix := range tx.Message.Instructions {
		programID, err := tx.Message.ResolveProgramIDIndex(ix.ProgramIDIndex)
		if err != nil {
			continue
		}
		detail.Instructions = append(detail.Instructions, RawInstruction{ProgramID: programID, Data: ix.Data})
	}
	return detail, nil
}

// rpcErrorLogs pulls simulation logs out of a preflight failure, if any.
func rpcErrorLogs(err *jsonrpc.RPCError) []string {
	data, ok := err.Data.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := data["logs"].([]any)
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}
