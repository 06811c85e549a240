package aireg_protocol

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// PDA seeds. The two registries use distinct seeds so the same
// (identifier, owner) pair can never map to the same address in both.
var (
	AgentRegistrySeed     = []byte("agent_registry")
	McpServerRegistrySeed = []byte("mcp_server_registry")
)

// Field limits, in bytes. Identifiers are used verbatim as a PDA seed, so they
// can never exceed the runtime's per-seed maximum.
const (
	MaxAgentIDLen          = solana.MaxSeedLength
	MaxAgentNameLen        = 128
	MaxAgentDescriptionLen = 512

	MaxServerIDLen       = solana.MaxSeedLength
	MaxServerNameLen     = 128
	MaxServerVersionLen  = 32
	MaxServerEndpointLen = 256

	MaxMetadataURILen = 256

	MaxAgentTags   = 10
	MaxAgentTagLen = 32

	MaxServerTags   = 10
	MaxServerTagLen = 32

	MaxSkills       = 10
	MaxSkillIDLen   = 64
	MaxSkillNameLen = 128
	MaxSkillTags    = 5
	MaxSkillTagLen  = 32
)

// Token parameters.
const (
	TokenDecimals  = 9
	TokenBaseUnits = 1_000_000_000
)

// Status is the lifecycle state stored on every registry entry.
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusInactive
	StatusDeregistered
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	case StatusDeregistered:
		return "deregistered"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s <= StatusDeregistered
}

// ParseStatus converts a status name to a Status.
func ParseStatus(name string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pending":
		return StatusPending, nil
	case "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	case "deregistered":
		return StatusDeregistered, nil
	}
	return 0, &ValidationError{Field: "status", Constraint: fmt.Sprintf("unknown status %q", name)}
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, &ValidationError{Field: "status", Constraint: fmt.Sprintf("unknown status %d", uint8(s))}
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Cluster selects the network and with it the program and token addresses.
type Cluster string

const (
	ClusterDevnet  Cluster = "devnet"
	ClusterTestnet Cluster = "testnet"
	ClusterMainnet Cluster = "mainnet"
)

// ParseCluster accepts the cluster names used by the Solana tooling.
func ParseCluster(name string) (Cluster, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "devnet":
		return ClusterDevnet, nil
	case "testnet":
		return ClusterTestnet, nil
	case "mainnet", "mainnet-beta":
		return ClusterMainnet, nil
	}
	return "", &ValidationError{Field: "cluster", Constraint: fmt.Sprintf("unsupported cluster %q", name)}
}

// Addresses groups the on-chain addresses that differ between clusters.
type Addresses struct {
	AgentRegistry     solana.PublicKey
	McpServerRegistry solana.PublicKey
	TokenMint         solana.PublicKey
	DefaultRPC        string
}

var (
	devnetAddresses = Addresses{
		AgentRegistry:     solana.MustPublicKeyFromBase58("AgentReg11111111111111111111111111111111111"),
		McpServerRegistry: solana.MustPublicKeyFromBase58("11111111111111111111111111111113"),
		TokenMint:         solana.MustPublicKeyFromBase58("A2AMPLyncKHwfSnwRNsJ2qsjsetgo9fGkP8YZPsDZ9mE"),
		DefaultRPC:        rpc.DevNet_RPC,
	}
	testnetAddresses = Addresses{
		AgentRegistry:     devnetAddresses.AgentRegistry,
		McpServerRegistry: devnetAddresses.McpServerRegistry,
		TokenMint:         devnetAddresses.TokenMint,
		DefaultRPC:        rpc.TestNet_RPC,
	}
	mainnetAddresses = Addresses{
		AgentRegistry:     devnetAddresses.AgentRegistry,
		McpServerRegistry: devnetAddresses.McpServerRegistry,
		TokenMint:         solana.MustPublicKeyFromBase58("Cpzvdx6pppc9TNArsGsqgShCsKC9NCCjA2gtzHvUpump"),
		DefaultRPC:        rpc.MainNetBeta_RPC,
	}
)

// Addresses returns the program and token addresses for the cluster.
func (c Cluster) Addresses() Addresses {
	switch c {
	case ClusterMainnet:
		return mainnetAddresses
	case ClusterTestnet:
		return testnetAddresses
	default:
		return devnetAddresses
	}
}

// ParseCommitment maps a commitment name onto the rpc enumeration.
func ParseCommitment(name string) (rpc.CommitmentType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	}
	return "", &ValidationError{Field: "commitment", Constraint: fmt.Sprintf("unknown commitment %q", name)}
}
