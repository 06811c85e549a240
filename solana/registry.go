package aireg_protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// EntryFilter narrows List and Search results. Zero fields match everything.
type EntryFilter struct {
	Owner *solana.PublicKey
	// Status matches entries in any of the listed states.
	Status []Status
	// Query is a case-insensitive substring matched against id, name and description.
	Query string
	// Tags must all be present on an entry. For agents, skill ids and skill
	// tags count as tags too.
	Tags  []string
	Limit int
}

func (f EntryFilter) matchStatus(s Status) bool {
	if len(f.Status) == 0 {
		return true
	}
	for _, want := range f.Status {
		if want == s {
			return true
		}
	}
	return false
}

func (f EntryFilter) matchTags(tags []string) bool {
	return hasAllTags(tags, f.Tags)
}

func (f EntryFilter) matchText(fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func discriminatorFilter(disc [AccountDiscriminatorLen]byte) []rpc.RPCFilter {
	return []rpc.RPCFilter{
		{
			Memcmp: &rpc.RPCFilterMemcmp{
				Offset: 0,
				Bytes:  disc[:],
			},
		},
	}
}

// readEntry fetches and decodes one account. Absent accounts yield the zero T
// and found == false.
func readEntry[T any](ctx context.Context, c *Client, addr solana.PublicKey, decode func([]byte) (T, error)) (entry T, found bool, err error) {
	t, err := c.Transport()
	if err != nil {
		return entry, false, err
	}
	data, err := t.GetAccountData(ctx, addr)
	if err != nil {
		return entry, false, fmt.Errorf("failed to get account %s: %w", addr, err)
	}
	if data == nil {
		return entry, false, nil
	}
	entry, err = decode(data)
	if err != nil {
		return entry, false, err
	}
	return entry, true, nil
}

// scanEntries decodes every program account carrying disc. One malformed
// account fails the whole scan.
func scanEntries[T any](ctx context.Context, c *Client, program solana.PublicKey, disc [AccountDiscriminatorLen]byte, decode func([]byte) (T, error)) ([]T, error) {
	t, err := c.Transport()
	if err != nil {
		return nil, err
	}
	accounts, err := t.GetProgramAccounts(ctx, program, discriminatorFilter(disc))
	if err != nil {
		return nil, fmt.Errorf("failed to get program accounts: %w", err)
	}
	entries := make([]T, 0, len(accounts))
	for _, acct := range accounts {
		entry, err := decode(acct.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode account %s: %w", acct.Address, err)
		}
		entries = append(entries, entry)
	}
	c.logger.Debug("scanned registry accounts",
		zap.Stringer("program", program),
		zap.Int("count", len(entries)),
	)
	return entries, nil
}

func (c *Client) owner() (solana.PrivateKey, solana.PublicKey, error) {
	signer, err := c.Signer()
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return signer, signer.PublicKey(), nil
}
