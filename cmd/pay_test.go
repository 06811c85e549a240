package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	aireg_protocol "aireg-cli/solana"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayUsageCommand(t *testing.T) {
	env := newTestEnv(t)
	env.fundTokens(t, 5*aireg_protocol.TokenBaseUnits)
	provider := solana.NewWallet().PublicKey().String()

	_, err := runCommand(t, newPayCommand(), "usage", "--provider", provider, "--amount", "1.5")
	require.NoError(t, err)
	txs := env.ft.sentTxs()
	require.Len(t, txs, 1)
	// The provider has no token account yet, so one is created first.
	assert.Len(t, txs[0].Message.Instructions, 2)

	_, err = runCommand(t, newPayCommand(), "usage", "--provider", provider, "--amount", "10")
	assert.ErrorIs(t, err, aireg_protocol.ErrInsufficientFunds)
	assert.Len(t, env.ft.sentTxs(), 1)

	_, err = runCommand(t, newPayCommand(), "usage", "--provider", "not-a-key", "--amount", "1")
	assert.ErrorContains(t, err, "invalid provider")
}

func TestPayPrepayAndBalanceCommands(t *testing.T) {
	env := newTestEnv(t)
	env.fundTokens(t, 5*aireg_protocol.TokenBaseUnits)
	provider := solana.NewWallet().PublicKey().String()

	_, err := runCommand(t, newPayCommand(), "prepay", "--provider", provider, "--amount", "2")
	require.NoError(t, err)
	assert.Len(t, env.ft.sentTxs(), 1)

	setViper(t, jsonOutputKey, true)
	out, err := runCommand(t, newPayCommand(), "balance", "--provider", provider)
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, env.owner.String(), res["payer"])
	// The fake node does not apply the approval, so nothing is delegated.
	assert.EqualValues(t, 0, res["base_units"])
}

func TestPayStreamCommand(t *testing.T) {
	env := newTestEnv(t)
	env.fundTokens(t, 5*aireg_protocol.TokenBaseUnits)
	setViper(t, jsonOutputKey, true)
	provider := solana.NewWallet().PublicKey().String()

	out, err := runCommand(t, newPayCommand(), "stream", "--provider", provider,
		"--rate", "1", "--duration", "3s", "--interval", "1s")
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(out))
	var seqs []float64
	for {
		var p map[string]any
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.NotContains(t, p, "error")
		assert.EqualValues(t, aireg_protocol.TokenBaseUnits, p["base_units"])
		seqs = append(seqs, p["seq"].(float64))
	}
	assert.Len(t, seqs, 3)
	assert.Len(t, env.ft.sentTxs(), 3)
}

func TestPayStreamCommandRejectsUnboundedSchedule(t *testing.T) {
	env := newTestEnv(t)
	env.fundTokens(t, 1<<62)
	provider := solana.NewWallet().PublicKey().String()

	_, err := runCommand(t, newPayCommand(), "stream", "--provider", provider,
		"--rate", "1", "--duration", "24h", "--interval", "1us")
	assert.ErrorIs(t, err, aireg_protocol.ErrValidation)
	assert.Empty(t, env.ft.sentTxs())
}
