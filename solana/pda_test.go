package aireg_protocol

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDeriveAddressIsDeterministic(t *testing.T) {
	program := devnetAddresses.AgentRegistry
	var zeroOwner solana.PublicKey

	addr1, bump1, err := DeriveAddress([]byte("agent_registry"), "abc", zeroOwner, program)
	require.NoError(t, err)
	addr2, bump2, err := DeriveAddress([]byte("agent_registry"), "abc", zeroOwner, program)
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2)
	assert.Equal(t, bump1, bump2)

	want, wantBump, err := solana.FindProgramAddress([][]byte{[]byte("agent_registry"), []byte("abc"), zeroOwner[:]}, program)
	require.NoError(t, err)
	assert.Equal(t, want, addr1)
	assert.Equal(t, wantBump, bump1)
}

func TestDeriveDomainSeparation(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	program := devnetAddresses.AgentRegistry

	agent, _, err := AgentDeriver(program).Derive("x", owner)
	require.NoError(t, err)
	server, _, err := McpServerDeriver(program).Derive("x", owner)
	require.NoError(t, err)

	assert.NotEqual(t, agent, server)
}

func TestDeriveInputSensitivity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[a-z0-9-]{1,31}`).Draw(t, "id")
		owner := solana.PublicKeyFromBytes(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "owner"))
		d := AgentDeriver(devnetAddresses.AgentRegistry)

		base, _, err := d.Derive(id, owner)
		require.NoError(t, err)

		again, _, err := d.Derive(id, owner)
		require.NoError(t, err)
		assert.Equal(t, base, again)

		changedID, _, err := d.Derive(id+"z", owner)
		require.NoError(t, err)
		assert.NotEqual(t, base, changedID)

		flipped := owner
		flipped[rapid.IntRange(0, 31).Draw(t, "byte")] ^= 0x01
		changedOwner, _, err := d.Derive(id, flipped)
		require.NoError(t, err)
		assert.NotEqual(t, base, changedOwner)
	})
}

func TestDeriveRejectsOversizedID(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	d := McpServerDeriver(devnetAddresses.McpServerRegistry)

	_, _, err := d.Derive(strings.Repeat("a", solana.MaxSeedLength), owner)
	require.NoError(t, err)

	_, _, err = d.Derive(strings.Repeat("a", solana.MaxSeedLength+1), owner)
	assert.ErrorIs(t, err, ErrValidation)
}
