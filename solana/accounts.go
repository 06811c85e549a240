package aireg_protocol

import (
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	AgentEntryDiscriminator     = AccountDiscriminator("AgentRegistryEntry")
	McpServerEntryDiscriminator = AccountDiscriminator("McpServerRegistryEntry")
)

// AgentEntry is the decoded state of an agent registry account.
type AgentEntry struct {
	AgentID     string           `json:"agent_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Owner       solana.PublicKey `json:"owner"`
	Status      Status           `json:"status"`
	MetadataURI *string          `json:"metadata_uri,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Skills      []AgentSkill     `json:"skills,omitempty"`
	CreatedAt   int64            `json:"created_at"`
	UpdatedAt   int64            `json:"updated_at"`
}

func (e *AgentEntry) Created() time.Time { return time.Unix(e.CreatedAt, 0) }
func (e *AgentEntry) Updated() time.Time { return time.Unix(e.UpdatedAt, 0) }

// MarshalWithEncoder writes the account body, discriminator first.
func (e *AgentEntry) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(AgentEntryDiscriminator[:], false); err != nil {
		return err
	}
	for _, s := range []string{e.AgentID, e.Name, e.Description} {
		if err := writeString(enc, s); err != nil {
			return err
		}
	}
	if err := writePublicKey(enc, e.Owner); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(e.Status)); err != nil {
		return err
	}
	if err := writeOptionalString(enc, e.MetadataURI); err != nil {
		return err
	}
	if err := writeStrings(enc, e.Tags); err != nil {
		return err
	}
	if err := writeSkills(enc, e.Skills); err != nil {
		return err
	}
	if err := enc.WriteInt64(e.CreatedAt, bin.LE); err != nil {
		return err
	}
	return enc.WriteInt64(e.UpdatedAt, bin.LE)
}

// UnmarshalWithDecoder reads an agent account. The discriminator is skipped,
// not checked; zero padding after the last field is accepted.
func (e *AgentEntry) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	r := newFieldReader(dec, "agent_entry")
	if err = r.skip("discriminator", AccountDiscriminatorLen); err != nil {
		return err
	}
	if e.AgentID, err = r.str("agent_id", MaxAgentIDLen); err != nil {
		return err
	}
	if e.Name, err = r.str("name", MaxAgentNameLen); err != nil {
		return err
	}
	if e.Description, err = r.str("description", MaxAgentDescriptionLen); err != nil {
		return err
	}
	if e.Owner, err = r.publicKey("owner"); err != nil {
		return err
	}
	if e.Status, err = r.status("status"); err != nil {
		return err
	}
	if e.MetadataURI, err = r.optionalStr("metadata_uri", MaxMetadataURILen); err != nil {
		return err
	}
	if e.Tags, err = r.strs("tags", MaxAgentTags, MaxAgentTagLen); err != nil {
		return err
	}
	if e.Skills, err = r.skills("skills"); err != nil {
		return err
	}
	if e.CreatedAt, err = r.i64("created_at"); err != nil {
		return err
	}
	if e.UpdatedAt, err = r.i64("updated_at"); err != nil {
		return err
	}
	return r.end(true)
}

// DecodeAgentEntry decodes raw account data.
func DecodeAgentEntry(data []byte) (*AgentEntry, error) {
	entry := new(AgentEntry)
	if err := entry.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	return entry, nil
}

// McpServerEntry is the decoded state of an MCP server registry account.
type McpServerEntry struct {
	ServerID    string           `json:"server_id"`
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	EndpointURL string           `json:"endpoint_url"`
	Owner       solana.PublicKey `json:"owner"`
	Status      Status           `json:"status"`
	MetadataURI *string          `json:"metadata_uri,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	CreatedAt   int64            `json:"created_at"`
	UpdatedAt   int64            `json:"updated_at"`
}

func (e *McpServerEntry) Created() time.Time { return time.Unix(e.CreatedAt, 0) }
func (e *McpServerEntry) Updated() time.Time { return time.Unix(e.UpdatedAt, 0) }

func (e *McpServerEntry) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(McpServerEntryDiscriminator[:], false); err != nil {
		return err
	}
	for _, s := range []string{e.ServerID, e.Name, e.Version, e.EndpointURL} {
		if err := writeString(enc, s); err != nil {
			return err
		}
	}
	if err := writePublicKey(enc, e.Owner); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(e.Status)); err != nil {
		return err
	}
	if err := writeOptionalString(enc, e.MetadataURI); err != nil {
		return err
	}
	if err := writeStrings(enc, e.Tags); err != nil {
		return err
	}
	if err := enc.WriteInt64(e.CreatedAt, bin.LE); err != nil {
		return err
	}
	return enc.WriteInt64(e.UpdatedAt, bin.LE)
}

func (e *McpServerEntry) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	r := newFieldReader(dec, "mcp_server_entry")
	if err = r.skip("discriminator", AccountDiscriminatorLen); err != nil {
		return err
	}
	if e.ServerID, err = r.str("server_id", MaxServerIDLen); err != nil {
		return err
	}
	if e.Name, err = r.str("name", MaxServerNameLen); err != nil {
		return err
	}
	if e.Version, err = r.str("version", MaxServerVersionLen); err != nil {
		return err
	}
	if e.EndpointURL, err = r.str("endpoint_url", MaxServerEndpointLen); err != nil {
		return err
	}
	if e.Owner, err = r.publicKey("owner"); err != nil {
		return err
	}
	if e.Status, err = r.status("status"); err != nil {
		return err
	}
	if e.MetadataURI, err = r.optionalStr("metadata_uri", MaxMetadataURILen); err != nil {
		return err
	}
	if e.Tags, err = r.strs("tags", MaxServerTags, MaxServerTagLen); err != nil {
		return err
	}
	if e.CreatedAt, err = r.i64("created_at"); err != nil {
		return err
	}
	if e.UpdatedAt, err = r.i64("updated_at"); err != nil {
		return err
	}
	return r.end(true)
}

// DecodeMcpServerEntry decodes raw account data.
func DecodeMcpServerEntry(data []byte) (*McpServerEntry, error) {
	entry := new(McpServerEntry)
	if err := entry.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	return entry, nil
}

// TokenAccountSize is the fixed size of an SPL token account.
const TokenAccountSize = 165

// TokenAccount is the subset of an SPL token account the payment flows need.
type TokenAccount struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           uint8
	DelegatedAmount uint64
}

// DecodeTokenAccount parses the 165 byte SPL token account layout.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	r := newFieldReader(bin.NewBinDecoder(data), "token_account")
	if len(data) != TokenAccountSize {
		return nil, r.fail("size", fmt.Errorf("%w: want %d bytes, got %d", errTruncated, TokenAccountSize, len(data)))
	}
	var (
		acct TokenAccount
		err  error
	)
	if acct.Mint, err = r.publicKey("mint"); err != nil {
		return nil, err
	}
	if acct.Owner, err = r.publicKey("owner"); err != nil {
		return nil, err
	}
	if acct.Amount, err = r.u64("amount"); err != nil {
		return nil, err
	}
	if acct.Delegate, err = r.coptionKey("delegate"); err != nil {
		return nil, err
	}
	if acct.State, err = r.u8("state"); err != nil {
		return nil, err
	}
	// is_native: COption<u64>
	if err = r.skip("is_native", 12); err != nil {
		return nil, err
	}
	if acct.DelegatedAmount, err = r.u64("delegated_amount"); err != nil {
		return nil, err
	}
	if _, err = r.coptionKey("close_authority"); err != nil {
		return nil, err
	}
	if err = r.end(false); err != nil {
		return nil, err
	}
	if acct.Delegate == nil {
		acct.DelegatedAmount = 0
	}
	return &acct, nil
}

// coptionKey reads a C-style option: u32 tag followed by a key that is always present.
func (r *fieldReader) coptionKey(field string) (*solana.PublicKey, error) {
	tag, err := r.u32(field)
	if err != nil {
		return nil, err
	}
	key, err := r.publicKey(field)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		return &key, nil
	}
	return nil, r.fail(field, fmt.Errorf("%w: got %d", errOptionFlag, tag))
}
