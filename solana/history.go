package aireg_protocol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// historyFetchLimit bounds concurrent getTransaction calls.
const historyFetchLimit = 8

// DefaultHistoryLimit is used when a caller passes a non-positive limit.
const DefaultHistoryLimit = 25

// HistoryEvent is one transaction that touched a registry entry.
type HistoryEvent struct {
	Signature  solana.Signature `json:"signature"`
	Slot       uint64           `json:"slot"`
	Timestamp  *time.Time       `json:"timestamp,omitempty"`
	Failed     bool             `json:"failed"`
	Operations []string         `json:"operations"`
}

// entryHistory lists the newest signatures for addr and decodes the registry
// instructions each transaction carried for program.
func entryHistory(
	ctx context.Context,
	c *Client,
	addr, program solana.PublicKey,
	limit int,
	describe func(data []byte) string,
) ([]HistoryEvent, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	t, err := c.Transport()
	if err != nil {
		return nil, err
	}
	sigs, err := t.GetSignatures(ctx, addr, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction signatures: %w", err)
	}

	events := make([]HistoryEvent, len(sigs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyFetchLimit)
	for i, info := range sigs {
		i, info := i, info
		events[i] = HistoryEvent{
			Signature: info.Signature,
			Slot:      info.Slot,
			Timestamp: info.BlockTime,
			Failed:    info.Failed,
		}
		g.Go(func() error {
			detail, err := t.GetTransactionLogs(gctx, info.Signature)
			if err != nil {
				return fmt.Errorf("failed to fetch transaction %s: %w", info.Signature, err)
			}
			if detail == nil {
				return nil
			}
			for _, ix := range detail.Instructions {
				if ix.ProgramID.Equals(program) {
					events[i].Operations = append(events[i].Operations, describe(ix.Data))
				}
			}
			if detail.Err != nil {
				events[i].Failed = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return events, nil
}

func describeAgentInstruction(data []byte) string {
	ix, err := DecodeAgentInstruction(data)
	if err != nil {
		return "unrecognized instruction"
	}
	switch ix := ix.(type) {
	case *RegisterAgentArgs:
		return fmt.Sprintf("register %q", ix.AgentID)
	case *UpdateAgentArgs:
		return fmt.Sprintf("update %q (%s)", ix.AgentID, changedFields(map[string]bool{
			"name":         ix.Name != nil,
			"description":  ix.Description != nil,
			"metadata_uri": ix.MetadataURI != nil,
			"status":       ix.Status != nil,
			"tags":         ix.Tags != nil,
			"skills":       ix.Skills != nil,
		}))
	case *DeregisterAgentArgs:
		return fmt.Sprintf("deregister %q", ix.AgentID)
	}
	return "unrecognized instruction"
}

func describeMcpServerInstruction(data []byte) string {
	ix, err := DecodeMcpServerInstruction(data)
	if err != nil {
		return "unrecognized instruction"
	}
	switch ix := ix.(type) {
	case *RegisterMcpServerArgs:
		return fmt.Sprintf("register %q", ix.ServerID)
	case *UpdateMcpServerArgs:
		return fmt.Sprintf("update %q (%s)", ix.ServerID, changedFields(map[string]bool{
			"name":         ix.Name != nil,
			"version":      ix.Version != nil,
			"endpoint_url": ix.EndpointURL != nil,
			"metadata_uri": ix.MetadataURI != nil,
			"status":       ix.Status != nil,
			"tags":         ix.Tags != nil,
		}))
	case *DeregisterMcpServerArgs:
		return fmt.Sprintf("deregister %q", ix.ServerID)
	}
	return "unrecognized instruction"
}

var fieldOrder = []string{"name", "description", "version", "endpoint_url", "metadata_uri", "status", "tags", "skills"}

func changedFields(set map[string]bool) string {
	var out []string
	for _, f := range fieldOrder {
		if set[f] {
			out = append(out, f)
		}
	}
	return strings.Join(out, ", ")
}
