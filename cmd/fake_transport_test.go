package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	aireg_protocol "aireg-cli/solana"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory RPC node. Every send succeeds.
type fakeTransport struct {
	mu              sync.Mutex
	accounts        map[solana.PublicKey][]byte
	programAccounts map[solana.PublicKey][]aireg_protocol.KeyedAccount
	sent            []*solana.Transaction
	blockhashes     int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		accounts:        make(map[solana.PublicKey][]byte),
		programAccounts: make(map[solana.PublicKey][]aireg_protocol.KeyedAccount),
	}
}

func (f *fakeTransport) put(program, addr solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[addr] = data
	if !program.IsZero() {
		f.programAccounts[program] = append(f.programAccounts[program], aireg_protocol.KeyedAccount{Address: addr, Data: data})
	}
}

func (f *fakeTransport) sentTxs() []*solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*solana.Transaction(nil), f.sent...)
}

func (f *fakeTransport) GetAccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[addr], nil
}

func (f *fakeTransport) GetProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) ([]aireg_protocol.KeyedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []aireg_protocol.KeyedAccount
	for _, acct := range f.programAccounts[program] {
		if matchesMemcmp(acct.Data, filters) {
			out = append(out, acct)
		}
	}
	return out, nil
}

func matchesMemcmp(data []byte, filters []rpc.RPCFilter) bool {
	for _, f := range filters {
		if f.Memcmp == nil {
			continue
		}
		end := int(f.Memcmp.Offset) + len(f.Memcmp.Bytes)
		if end > len(data) || !bytes.Equal(data[f.Memcmp.Offset:end], f.Memcmp.Bytes) {
			return false
		}
	}
	return true
}

func (f *fakeTransport) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashes++
	var h solana.Hash
	h[0] = byte(f.blockhashes)
	h[31] = 0xCD
	return h, nil
}

func (f *fakeTransport) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeTransport) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*aireg_protocol.SimulationResult, error) {
	return &aireg_protocol.SimulationResult{UnitsConsumed: 4200, Logs: []string{"Program log: ok"}}, nil
}

func (f *fakeTransport) SignatureStatus(ctx context.Context, sig solana.Signature) (*aireg_protocol.SignatureStatus, error) {
	return nil, nil
}

func (f *fakeTransport) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return 2 * solana.LAMPORTS_PER_SOL, nil
}

func (f *fakeTransport) GetSignatures(ctx context.Context, addr solana.PublicKey, limit int) ([]aireg_protocol.SignatureInfo, error) {
	return nil, nil
}

func (f *fakeTransport) GetTransactionLogs(ctx context.Context, sig solana.Signature) (*aireg_protocol.TransactionDetail, error) {
	return nil, nil
}

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// testEnv points the command layer at a fake node and a throwaway keypair.
type testEnv struct {
	ft    *fakeTransport
	owner solana.PublicKey
	addrs aireg_protocol.Addresses
}

func setViper(t *testing.T, key string, value any) {
	t.Helper()
	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, nil) })
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	keypair := filepath.Join(t.TempDir(), "id.json")
	wallet, err := aireg_protocol.CreateWallet(keypair)
	require.NoError(t, err)
	setViper(t, keypairKey, keypair)
	setViper(t, storageDirKey, t.TempDir())

	ft := newFakeTransport()
	prev := clientOptions
	clientOptions = []aireg_protocol.ClientOption{
		aireg_protocol.WithTransport(ft),
		aireg_protocol.WithClientSleeper(noSleep{}),
	}
	t.Cleanup(func() { clientOptions = prev })

	return &testEnv{ft: ft, owner: wallet.PublicKey(), addrs: aireg_protocol.ClusterDevnet.Addresses()}
}

func (e *testEnv) putAgent(t *testing.T, entry *aireg_protocol.AgentEntry) {
	t.Helper()
	addr, _, err := aireg_protocol.AgentDeriver(e.addrs.AgentRegistry).Derive(entry.AgentID, entry.Owner)
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	require.NoError(t, entry.MarshalWithEncoder(bin.NewBorshEncoder(buf)))
	e.ft.put(e.addrs.AgentRegistry, addr, buf.Bytes())
}

func (e *testEnv) putServer(t *testing.T, entry *aireg_protocol.McpServerEntry) {
	t.Helper()
	addr, _, err := aireg_protocol.McpServerDeriver(e.addrs.McpServerRegistry).Derive(entry.ServerID, entry.Owner)
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	require.NoError(t, entry.MarshalWithEncoder(bin.NewBorshEncoder(buf)))
	e.ft.put(e.addrs.McpServerRegistry, addr, buf.Bytes())
}

// fundTokens gives the keypair an associated token account holding units.
func (e *testEnv) fundTokens(t *testing.T, units uint64) {
	t.Helper()
	ata, err := aireg_protocol.AssociatedTokenAddress(e.owner, e.addrs.TokenMint)
	require.NoError(t, err)
	data := make([]byte, aireg_protocol.TokenAccountSize)
	copy(data[0:32], e.addrs.TokenMint[:])
	copy(data[32:64], e.owner[:])
	binary.LittleEndian.PutUint64(data[64:72], units)
	data[108] = 1 // initialized
	e.ft.put(solana.PublicKey{}, ata, data)
}

// instructionData returns the data of every instruction sent to program.
func (e *testEnv) instructionData(program solana.PublicKey) [][]byte {
	var out [][]byte
	for _, tx := range e.ft.sentTxs() {
		for _, ix := range tx.Message.Instructions {
			if tx.Message.AccountKeys[ix.ProgramIDIndex].Equals(program) {
				out = append(out, ix.Data)
			}
		}
	}
	return out
}

// runCommand executes cmd with args and returns what it printed to stdout.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	out := make(chan string)
	go func() {
		b, _ := io.ReadAll(r)
		out <- string(b)
	}()

	runErr := func() error {
		defer func() {
			os.Stdout = stdout
			_ = w.Close()
		}()
		return cmd.ExecuteContext(context.Background())
	}()
	return <-out, runErr
}
