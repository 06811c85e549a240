package aireg_protocol

import (
	"context"
	"sort"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// McpServerRegistry reads and mutates MCP server entries.
type McpServerRegistry struct {
	client  *Client
	builder *Builder
}

func (r *McpServerRegistry) ProgramID() solana.PublicKey { return r.builder.ProgramID() }

func (r *McpServerRegistry) Address(serverID string, owner solana.PublicKey) (solana.PublicKey, error) {
	if err := validateRequired("server_id", serverID, MaxServerIDLen); err != nil {
		return solana.PublicKey{}, err
	}
	addr, _, err := r.builder.Deriver().Derive(serverID, owner)
	return addr, err
}

// Get returns the entry, or nil when no account exists at its address.
func (r *McpServerRegistry) Get(ctx context.Context, serverID string, owner solana.PublicKey) (*McpServerEntry, error) {
	addr, err := r.Address(serverID, owner)
	if err != nil {
		return nil, err
	}
	entry, _, err := readEntry(ctx, r.client, addr, DecodeMcpServerEntry)
	return entry, err
}

func (r *McpServerRegistry) Register(ctx context.Context, args RegisterMcpServerArgs) (*Result, error) {
	_, owner, err := r.client.owner()
	if err != nil {
		return nil, err
	}
	if err := args.Validate(); err != nil {
		return nil, err
	}
	existing, err := r.Get(ctx, args.ServerID, owner)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &EntryExistsError{Kind: KindMcpServer, ID: args.ServerID, Owner: owner}
	}
	ix, err := r.builder.RegisterMcpServer(args, owner)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "register", args.ServerID, ix)
}

func (r *McpServerRegistry) SimulateRegister(ctx context.Context, args RegisterMcpServerArgs) (*SimulationResult, error) {
	_, owner, err := r.client.owner()
	if err != nil {
		return nil, err
	}
	ix, err := r.builder.RegisterMcpServer(args, owner)
	if err != nil {
		return nil, err
	}
	return r.client.Simulate(ctx, ix)
}

func (r *McpServerRegistry) Update(ctx context.Context, args UpdateMcpServerArgs) (*Result, error) {
	_, owner, err := r.client.owner()
	if err != nil {
		return nil, err
	}
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := r.mustExist(ctx, args.ServerID, owner); err != nil {
		return nil, err
	}
	ix, err := r.builder.UpdateMcpServer(args, owner)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "update", args.ServerID, ix)
}

func (r *McpServerRegistry) UpdateStatus(ctx context.Context, serverID string, status Status) (*Result, error) {
	return r.Update(ctx, UpdateMcpServerArgs{ServerID: serverID, Status: &status})
}

func (r *McpServerRegistry) Deregister(ctx context.Context, serverID string) (*Result, error) {
	_, owner, err := r.client.owner()
	if err != nil {
		return nil, err
	}
	args := DeregisterMcpServerArgs{ServerID: serverID}
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := r.mustExist(ctx, serverID, owner); err != nil {
		return nil, err
	}
	ix, err := r.builder.DeregisterMcpServer(args, owner)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "deregister", serverID, ix)
}

func (r *McpServerRegistry) ListByOwner(ctx context.Context, owner solana.PublicKey) ([]*McpServerEntry, error) {
	return r.Search(ctx, EntryFilter{Owner: &owner})
}

// Search also matches Query against the endpoint URL and version.
func (r *McpServerRegistry) Search(ctx context.Context, filter EntryFilter) ([]*McpServerEntry, error) {
	all, err := scanEntries(ctx, r.client, r.ProgramID(), McpServerEntryDiscriminator, DecodeMcpServerEntry)
	if err != nil {
		return nil, err
	}
	out := make([]*McpServerEntry, 0, len(all))
	for _, e := range all {
		if filter.Owner != nil && e.Owner != *filter.Owner {
			continue
		}
		if !filter.matchStatus(e.Status) || !filter.matchTags(e.Tags) {
			continue
		}
		if !filter.matchText(e.ServerID, e.Name, e.Version, e.EndpointURL) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ServerID < out[j].ServerID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *McpServerRegistry) History(ctx context.Context, serverID string, owner solana.PublicKey, limit int) ([]HistoryEvent, error) {
	addr, err := r.Address(serverID, owner)
	if err != nil {
		return nil, err
	}
	return entryHistory(ctx, r.client, addr, r.ProgramID(), limit, describeMcpServerInstruction)
}

func (r *McpServerRegistry) mustExist(ctx context.Context, serverID string, owner solana.PublicKey) error {
	existing, err := r.Get(ctx, serverID, owner)
	if err != nil {
		return err
	}
	if existing == nil {
		return &EntryNotFoundError{Kind: KindMcpServer, ID: serverID, Owner: owner}
	}
	return nil
}

func (r *McpServerRegistry) submit(ctx context.Context, op, serverID string, ix solana.Instruction) (*Result, error) {
	res, err := r.client.Submit(ctx, ix)
	if err != nil {
		return nil, TranslateProgramError(r.ProgramID(), err)
	}
	r.client.logger.Info("mcp server "+op+" submitted",
		zap.String("server_id", serverID),
		zap.Stringer("signature", res.Signature),
	)
	return res, nil
}
