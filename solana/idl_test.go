package aireg_protocol

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedIDLErrorTable(t *testing.T) {
	idl, err := ParseIDL(registryIDL)
	require.NoError(t, err)
	require.NotEmpty(t, idl.Errors)

	seen := make(map[uint32]bool)
	for i, e := range idl.Errors {
		assert.Equal(t, uint32(i), e.Code, "codes follow declaration order")
		assert.False(t, seen[e.Code])
		seen[e.Code] = true
		assert.NotEmpty(t, e.Name)
	}

	entry, ok := LookupProgramError(47)
	require.True(t, ok)
	assert.Equal(t, "AccountNotFound", entry.Name)

	_, ok = LookupProgramError(10_000)
	assert.False(t, ok)
}

func TestTranslateProgramError(t *testing.T) {
	program := solana.NewWallet().PublicKey()

	t.Run("custom error in message", func(t *testing.T) {
		err := TranslateProgramError(program, &TransactionError{Err: errors.New("custom program error: 0x2f")})
		var pe *ProgramError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, uint32(47), pe.Code)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "Account not found")
	})

	t.Run("custom error in logs", func(t *testing.T) {
		err := TranslateProgramError(program, &TransactionError{
			Err:  errors.New("simulation failed"),
			Logs: []string{"Program " + program.String() + " failed: custom program error: 0x31"},
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("unknown code keeps the number", func(t *testing.T) {
		err := TranslateProgramError(program, errors.New("custom program error: 0x1771"))
		var pe *ProgramError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, uint32(6001), pe.Code)
		assert.Empty(t, pe.Name)
		assert.ErrorIs(t, err, ErrTransaction)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		orig := &ConnectionError{Op: "send", Err: errConnRefused}
		assert.Same(t, orig, TranslateProgramError(program, orig))
		assert.NoError(t, TranslateProgramError(program, nil))
	})
}
