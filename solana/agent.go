package aireg_protocol

import (
	"context"
	"sort"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// AgentRegistry reads and mutates agent entries.
type AgentRegistry struct {
	client  *Client
	builder *Builder
}

// ProgramID returns the agent registry program.
func (r *AgentRegistry) ProgramID() solana.PublicKey { return r.builder.ProgramID() }

// Address returns the entry address for (agentID, owner).
func (r *AgentRegistry) Address(agentID string, owner solana.PublicKey) (solana.PublicKey, error) {
	if err := validateRequired("agent_id", agentID, MaxAgentIDLen); err != nil {
		return solana.PublicKey{}, err
	}
	addr, _, err := r.builder.Deriver().Derive(agentID, owner)
	return addr, err
}

// Get returns the entry, or nil when no account exists at its address.
func (r *AgentRegistry) Get(ctx context.Context, agentID string, owner solana.PublicKey) (*AgentEntry, error) {
	addr, err := r.Address(agentID, owner)
	if err != nil {
		return nil, err
	}
	entry, _, err := readEntry(ctx, r.client, addr, DecodeAgentEntry)
	return entry, err
}

// Register creates a new agent owned by the client signer.
func (r *AgentRegistry) Register(ctx context.Context, args RegisterAgentArgs) (*Result, error) {
	_, owner, err := r.client.owner()
	if err != nil {
		return nil, err
	}
	if err := args.Validate(); err != nil {
		return nil, err
	}
	existing, err := r.Get(ctx, args.AgentID, owner)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &EntryExistsError{Kind: KindAgent, ID: args.AgentID, Owner: owner}
	}
	ix, err := r.builder.RegisterAgent(args, owner)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "register", args.AgentID, ix)
}

// SimulateRegister dry-runs a registration without the existence pre-check.
func (r *AgentRegistry) SimulateRegister(ctx context.Context, args RegisterAgentArgs) (*SimulationResult, error) {
	_, owner, err := r.client.owner()
	if err != nil {
		return nil, err
	}
	ix, err := r.builder.RegisterAgent(args, owner)
	if err != nil {
		return nil, err
	}
	return r.client.Simulate(ctx, ix)
}

// Update changes the set fields of an existing agent.
func (r *AgentRegistry) Update(ctx context.Context, args UpdateAgentArgs) (*Result, error) {
	_, owner, err := r.client.owner()
	if err != nil {
		return nil, err
	}
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := r.mustExist(ctx, args.AgentID, owner); err != nil {
		return nil, err
	}
	ix, err := r.builder.UpdateAgent(args, owner)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "update", args.AgentID, ix)
}

// UpdateStatus sets only the status of an existing agent.
func (r *AgentRegistry) UpdateStatus(ctx context.Context, agentID string, status Status) (*Result, error) {
	return r.Update(ctx, UpdateAgentArgs{AgentID: agentID, Status: &status})
}

// Deregister marks an existing agent as deregistered.
func (r *AgentRegistry) Deregister(ctx context.Context, agentID string) (*Result, error) {
	_, owner, err := r.client.owner()
	if err != nil {
		return nil, err
	}
	args := DeregisterAgentArgs{AgentID: agentID}
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := r.mustExist(ctx, agentID, owner); err != nil {
		return nil, err
	}
	ix, err := r.builder.DeregisterAgent(args, owner)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "deregister", agentID, ix)
}

// ListByOwner returns every agent owned by owner.
func (r *AgentRegistry) ListByOwner(ctx context.Context, owner solana.PublicKey) ([]*AgentEntry, error) {
	return r.Search(ctx, EntryFilter{Owner: &owner})
}

// Search scans the registry and returns matching agents, oldest first.
func (r *AgentRegistry) Search(ctx context.Context, filter EntryFilter) ([]*AgentEntry, error) {
	all, err := scanEntries(ctx, r.client, r.ProgramID(), AgentEntryDiscriminator, DecodeAgentEntry)
	if err != nil {
		return nil, err
	}
	out := make([]*AgentEntry, 0, len(all))
	for _, e := range all {
		if filter.Owner != nil && e.Owner != *filter.Owner {
			continue
		}
		if !filter.matchStatus(e.Status) || !filter.matchTags(append(skillTags(e.Skills), e.Tags...)) {
			continue
		}
		if !filter.matchText(append([]string{e.AgentID, e.Name, e.Description}, skillNames(e.Skills)...)...) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].AgentID < out[j].AgentID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// History returns the recent transactions that touched the agent's account.
func (r *AgentRegistry) History(ctx context.Context, agentID string, owner solana.PublicKey, limit int) ([]HistoryEvent, error) {
	addr, err := r.Address(agentID, owner)
	if err != nil {
		return nil, err
	}
	return entryHistory(ctx, r.client, addr, r.ProgramID(), limit, describeAgentInstruction)
}

func (r *AgentRegistry) mustExist(ctx context.Context, agentID string, owner solana.PublicKey) error {
	existing, err := r.Get(ctx, agentID, owner)
	if err != nil {
		return err
	}
	if existing == nil {
		return &EntryNotFoundError{Kind: KindAgent, ID: agentID, Owner: owner}
	}
	return nil
}

func (r *AgentRegistry) submit(ctx context.Context, op, agentID string, ix solana.Instruction) (*Result, error) {
	res, err := r.client.Submit(ctx, ix)
	if err != nil {
		return nil, TranslateProgramError(r.ProgramID(), err)
	}
	r.client.logger.Info("agent "+op+" submitted",
		zap.String("agent_id", agentID),
		zap.Stringer("signature", res.Signature),
	)
	return res, nil
}
