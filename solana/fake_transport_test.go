package aireg_protocol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTransport is an in-memory Transport. Sends fail with the queued errors
// in order, then with sendAlways if set, then succeed.
type fakeTransport struct {
	mu sync.Mutex

	accounts        map[solana.PublicKey][]byte
	programAccounts map[solana.PublicKey][]KeyedAccount
	readErr         error

	blockhashCalls int
	blockhashErr   error

	sendErrs   []error
	sendAlways error
	sent       []*solana.Transaction

	simResult *SimulationResult
	statuses  []*SignatureStatus

	signatures []SignatureInfo
	details    map[solana.Signature]*TransactionDetail
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		accounts:        make(map[solana.PublicKey][]byte),
		programAccounts: make(map[solana.PublicKey][]KeyedAccount),
		details:         make(map[solana.Signature]*TransactionDetail),
	}
}

func (f *fakeTransport) putAccount(program, addr solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[addr] = data
	if !program.IsZero() {
		f.programAccounts[program] = append(f.programAccounts[program], KeyedAccount{Address: addr, Data: data})
	}
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) lastSent() *solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) GetAccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.accounts[addr], nil
}

func (f *fakeTransport) GetProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) ([]KeyedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []KeyedAccount
	for _, acct := range f.programAccounts[program] {
		if matchesFilters(acct.Data, filters) {
			out = append(out, acct)
		}
	}
	return out, nil
}

func matchesFilters(data []byte, filters []rpc.RPCFilter) bool {
	for _, f := range filters {
		if f.Memcmp == nil {
			continue
		}
		end := int(f.Memcmp.Offset) + len(f.Memcmp.Bytes)
		if end > len(data) || string(data[f.Memcmp.Offset:end]) != string(f.Memcmp.Bytes) {
			return false
		}
	}
	return true
}

func (f *fakeTransport) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blockhashErr != nil {
		return solana.Hash{}, f.blockhashErr
	}
	f.blockhashCalls++
	var h solana.Hash
	h[0] = byte(f.blockhashCalls)
	h[31] = 0xAB
	return h, nil
}

func (f *fakeTransport) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		return solana.Signature{}, err
	}
	if f.sendAlways != nil {
		return solana.Signature{}, f.sendAlways
	}
	return tx.Signatures[0], nil
}

func (f *fakeTransport) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.simResult == nil {
		return &SimulationResult{}, nil
	}
	return f.simResult, nil
}

func (f *fakeTransport) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return nil, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st, nil
}

func (f *fakeTransport) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeTransport) GetSignatures(ctx context.Context, addr solana.PublicKey, limit int) ([]SignatureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > 0 && len(f.signatures) > limit {
		return f.signatures[:limit], nil
	}
	return f.signatures, nil
}

func (f *fakeTransport) GetTransactionLogs(ctx context.Context, sig solana.Signature) (*TransactionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.details[sig], nil
}

// fakeSleeper records requested delays and returns immediately.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *fakeSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:8899: connect: connection refused")

func newTestClient(t *testing.T, ft *fakeTransport, signer solana.PrivateKey) (*Client, *fakeSleeper) {
	t.Helper()
	sleeper := &fakeSleeper{}
	cfg := DefaultConfig()
	cfg.Logger = zap.NewNop()
	c, err := NewClient(cfg, signer, WithTransport(ft), WithClientSleeper(sleeper))
	require.NoError(t, err)
	return c, sleeper
}

func newSigner(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func strPtr(s string) *string { return &s }
