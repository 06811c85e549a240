package aireg_protocol

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Deriver computes registry entry addresses for one program.
type Deriver struct {
	ProgramID solana.PublicKey
	Seed      []byte
}

// AgentDeriver returns the deriver for agent entries under programID.
func AgentDeriver(programID solana.PublicKey) Deriver {
	return Deriver{ProgramID: programID, Seed: AgentRegistrySeed}
}

// McpServerDeriver returns the deriver for MCP server entries under programID.
func McpServerDeriver(programID solana.PublicKey) Deriver {
	return Deriver{ProgramID: programID, Seed: McpServerRegistrySeed}
}

// Derive returns the entry address for (id, owner) and its bump.
func (d Deriver) Derive(id string, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return DeriveAddress(d.Seed, id, owner, d.ProgramID)
}

// DeriveAddress finds the program address for the seeds [seed, id, owner],
// using the highest bump that lands off the curve.
func DeriveAddress(seed []byte, id string, owner, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seed) > solana.MaxSeedLength {
		return solana.PublicKey{}, 0, &ValidationError{Field: "seed", Constraint: fmt.Sprintf("exceeds %d bytes", solana.MaxSeedLength)}
	}
	if len(id) > solana.MaxSeedLength {
		return solana.PublicKey{}, 0, &ValidationError{Field: "id", Constraint: fmt.Sprintf("length %d exceeds seed maximum %d bytes", len(id), solana.MaxSeedLength)}
	}
	addr, bump, err := solana.FindProgramAddress([][]byte{seed, []byte(id), owner[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: %v", ErrNoViableBump, err)
	}
	return addr, bump, nil
}

// AssociatedTokenAddress returns the owner's associated token account for mint.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find associated token address: %w", err)
	}
	return addr, nil
}
