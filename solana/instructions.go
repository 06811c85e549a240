package aireg_protocol

import (
	"github.com/gagliardetto/solana-go"
)

// Builder assembles registry instructions for one program. It performs no I/O.
type Builder struct {
	deriver Deriver
}

// NewAgentBuilder returns a builder for the agent registry program.
func NewAgentBuilder(programID solana.PublicKey) *Builder {
	return &Builder{deriver: AgentDeriver(programID)}
}

// NewMcpServerBuilder returns a builder for the MCP server registry program.
func NewMcpServerBuilder(programID solana.PublicKey) *Builder {
	return &Builder{deriver: McpServerDeriver(programID)}
}

// ProgramID returns the program the builder targets.
func (b *Builder) ProgramID() solana.PublicKey { return b.deriver.ProgramID }

// Deriver returns the address deriver used by the builder.
func (b *Builder) Deriver() Deriver { return b.deriver }

func (b *Builder) build(args InstructionArgs, id string, owner solana.PublicKey) (solana.Instruction, error) {
	data, err := EncodeInstructionData(args)
	if err != nil {
		return nil, err
	}
	pda, _, err := b.deriver.Derive(id, owner)
	if err != nil {
		return nil, err
	}
	var accounts solana.AccountMetaSlice
	if args.Discriminant() == DiscriminantRegister {
		accounts = solana.AccountMetaSlice{
			solana.Meta(pda).WRITE(),
			solana.Meta(owner).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		}
	} else {
		accounts = solana.AccountMetaSlice{
			solana.Meta(pda).WRITE(),
			solana.Meta(owner).SIGNER(),
		}
	}
	return solana.NewInstruction(b.deriver.ProgramID, accounts, data), nil
}

// RegisterAgent builds the agent register instruction.
func (b *Builder) RegisterAgent(args RegisterAgentArgs, owner solana.PublicKey) (solana.Instruction, error) {
	return b.build(&args, args.AgentID, owner)
}

// UpdateAgent builds the agent update instruction.
func (b *Builder) UpdateAgent(args UpdateAgentArgs, owner solana.PublicKey) (solana.Instruction, error) {
	return b.build(&args, args.AgentID, owner)
}

// DeregisterAgent builds the agent deregister instruction.
func (b *Builder) DeregisterAgent(args DeregisterAgentArgs, owner solana.PublicKey) (solana.Instruction, error) {
	return b.build(&args, args.AgentID, owner)
}

// RegisterMcpServer builds the MCP server register instruction.
func (b *Builder) RegisterMcpServer(args RegisterMcpServerArgs, owner solana.PublicKey) (solana.Instruction, error) {
	return b.build(&args, args.ServerID, owner)
}

// UpdateMcpServer builds the MCP server update instruction.
func (b *Builder) UpdateMcpServer(args UpdateMcpServerArgs, owner solana.PublicKey) (solana.Instruction, error) {
	return b.build(&args, args.ServerID, owner)
}

// DeregisterMcpServer builds the MCP server deregister instruction.
func (b *Builder) DeregisterMcpServer(args DeregisterMcpServerArgs, owner solana.PublicKey) (solana.Instruction, error) {
	return b.build(&args, args.ServerID, owner)
}
