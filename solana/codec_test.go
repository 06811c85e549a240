package aireg_protocol

import (
	"errors"
	"strings"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegisterAgentPayloadRoundTrip(t *testing.T) {
	args := &RegisterAgentArgs{AgentID: "abc", Name: "Agent", Description: "d"}

	data, err := EncodeInstructionData(args)
	require.NoError(t, err)
	assert.Equal(t, DiscriminantRegister, data[0])

	decoded, err := DecodeAgentInstruction(data)
	require.NoError(t, err)
	got, ok := decoded.(*RegisterAgentArgs)
	require.True(t, ok)
	assert.Equal(t, "abc", got.AgentID)
	assert.Equal(t, "Agent", got.Name)
	assert.Equal(t, "d", got.Description)
	assert.Nil(t, got.MetadataURI)
	assert.Nil(t, got.Tags)
	assert.Nil(t, got.Skills)
}

func TestRegisterAgentPayloadBytes(t *testing.T) {
	data, err := EncodeInstructionData(&RegisterAgentArgs{AgentID: "abc", Name: "Agent", Description: "d"})
	require.NoError(t, err)

	want := []byte{0}
	want = append(want, 3, 0, 0, 0, 'a', 'b', 'c')
	want = append(want, 5, 0, 0, 0, 'A', 'g', 'e', 'n', 't')
	want = append(want, 1, 0, 0, 0, 'd')
	want = append(want, 0)
	want = append(want, 0, 0, 0, 0) // tags
	want = append(want, 0, 0, 0, 0) // skills
	assert.Equal(t, want, data)
}

func TestRegisterAgentPayloadTagBytes(t *testing.T) {
	data, err := EncodeInstructionData(&RegisterAgentArgs{
		AgentID: "a",
		Name:    "n",
		Tags:    []string{"ai", "x"},
		Skills:  []AgentSkill{{ID: "s", Name: "S", Tags: []string{"t"}}},
	})
	require.NoError(t, err)

	want := []byte{0, 1, 0, 0, 0, 'a', 1, 0, 0, 0, 'n', 0, 0, 0, 0, 0}
	want = append(want, 2, 0, 0, 0, 2, 0, 0, 0, 'a', 'i', 1, 0, 0, 0, 'x')
	want = append(want, 1, 0, 0, 0, 1, 0, 0, 0, 's', 1, 0, 0, 0, 'S', 1, 0, 0, 0, 1, 0, 0, 0, 't')
	assert.Equal(t, want, data)
}

func TestUpdatePayloadOptionFlags(t *testing.T) {
	status := StatusInactive
	data, err := EncodeInstructionData(&UpdateAgentArgs{AgentID: "a", Description: strPtr(""), Status: &status})
	require.NoError(t, err)

	want := []byte{1, 1, 0, 0, 0, 'a', 0, 1, 0, 0, 0, 0, 0, 1, byte(StatusInactive), 0, 0}
	assert.Equal(t, want, data)
}

func TestUpdatePayloadClearsTags(t *testing.T) {
	data, err := EncodeInstructionData(&UpdateMcpServerArgs{ServerID: "s", Tags: []string{}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 0, 0, 0, 's', 0, 0, 0, 0, 0, 1, 0, 0, 0, 0}, data)

	decoded, err := DecodeMcpServerInstruction(data)
	require.NoError(t, err)
	tags := decoded.(*UpdateMcpServerArgs).Tags
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func genTags(t *rapid.T, label string, maxCount, maxLen int) []string {
	n := rapid.IntRange(0, maxCount).Draw(t, label+"_count")
	if n == 0 {
		return nil
	}
	tags := make([]string, n)
	for i := range tags {
		tags[i] = rapid.StringN(1, maxLen, maxLen).Draw(t, label)
	}
	return tags
}

func genSkills(t *rapid.T) []AgentSkill {
	n := rapid.IntRange(0, 3).Draw(t, "skill_count")
	if n == 0 {
		return nil
	}
	skills := make([]AgentSkill, n)
	for i := range skills {
		skills[i] = AgentSkill{
			ID:   rapid.StringN(1, 16, MaxSkillIDLen).Draw(t, "skill_id"),
			Name: rapid.StringN(1, 16, MaxSkillNameLen).Draw(t, "skill_name"),
			Tags: genTags(t, "skill_tag", MaxSkillTags, MaxSkillTagLen),
		}
	}
	return skills
}

func genAgentEntry(t *rapid.T) *AgentEntry {
	e := &AgentEntry{
		AgentID:     rapid.StringN(1, MaxAgentIDLen, MaxAgentIDLen).Draw(t, "agent_id"),
		Name:        rapid.StringN(1, 64, MaxAgentNameLen).Draw(t, "name"),
		Description: rapid.StringN(0, 128, MaxAgentDescriptionLen).Draw(t, "description"),
		Owner:       solana.PublicKeyFromBytes(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "owner")),
		Status:      Status(rapid.Uint8Range(0, uint8(StatusDeregistered)).Draw(t, "status")),
		Tags:        genTags(t, "tag", MaxAgentTags, MaxAgentTagLen),
		Skills:      genSkills(t),
		CreatedAt:   rapid.Int64().Draw(t, "created_at"),
		UpdatedAt:   rapid.Int64().Draw(t, "updated_at"),
	}
	if rapid.Bool().Draw(t, "has_metadata") {
		e.MetadataURI = strPtr(rapid.StringN(0, 64, MaxMetadataURILen).Draw(t, "metadata_uri"))
	}
	return e
}

func genMcpServerEntry(t *rapid.T) *McpServerEntry {
	e := &McpServerEntry{
		ServerID:    rapid.StringN(1, MaxServerIDLen, MaxServerIDLen).Draw(t, "server_id"),
		Name:        rapid.StringN(1, 64, MaxServerNameLen).Draw(t, "name"),
		Version:     rapid.StringN(1, 8, MaxServerVersionLen).Draw(t, "version"),
		EndpointURL: rapid.StringN(1, 64, MaxServerEndpointLen).Draw(t, "endpoint_url"),
		Owner:       solana.PublicKeyFromBytes(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "owner")),
		Status:      Status(rapid.Uint8Range(0, uint8(StatusDeregistered)).Draw(t, "status")),
		Tags:        genTags(t, "tag", MaxServerTags, MaxServerTagLen),
		CreatedAt:   rapid.Int64().Draw(t, "created_at"),
		UpdatedAt:   rapid.Int64().Draw(t, "updated_at"),
	}
	if rapid.Bool().Draw(t, "has_metadata") {
		e.MetadataURI = strPtr(rapid.StringN(0, 64, MaxMetadataURILen).Draw(t, "metadata_uri"))
	}
	return e
}

func TestAgentEntryRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entry := genAgentEntry(t)
		data, err := encodeWith(entry.MarshalWithEncoder)
		require.NoError(t, err)

		padding := rapid.IntRange(0, 64).Draw(t, "padding")
		data = append(data, make([]byte, padding)...)

		got, err := DecodeAgentEntry(data)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
	})
}

func TestMcpServerEntryRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entry := genMcpServerEntry(t)
		data, err := encodeWith(entry.MarshalWithEncoder)
		require.NoError(t, err)

		got, err := DecodeMcpServerEntry(data)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
	})
}

func TestUpdateMcpServerPayloadRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		opt := func(label string, max int) *string {
			if !rapid.Bool().Draw(t, "has_"+label) {
				return nil
			}
			return strPtr(rapid.StringN(1, 16, max).Draw(t, label))
		}
		args := &UpdateMcpServerArgs{
			ServerID: rapid.StringN(1, MaxServerIDLen, MaxServerIDLen).Draw(t, "server_id"),
			Name:     opt("name", MaxServerNameLen),
			Version:  opt("version", MaxServerVersionLen),
		}
		if rapid.Bool().Draw(t, "has_endpoint") {
			args.EndpointURL = strPtr("https://mcp.example.com/" + rapid.StringMatching(`[a-z]{0,16}`).Draw(t, "path"))
		}
		if rapid.Bool().Draw(t, "has_tags") {
			args.Tags = genTags(t, "tag", MaxServerTags, MaxServerTagLen)
			if args.Tags == nil {
				args.Tags = []string{}
			}
		}
		if rapid.Bool().Draw(t, "has_status") || args.Empty() {
			s := Status(rapid.Uint8Range(0, uint8(StatusDeregistered)).Draw(t, "status"))
			args.Status = &s
		}

		data, err := EncodeInstructionData(args)
		require.NoError(t, err)
		decoded, err := DecodeMcpServerInstruction(data)
		require.NoError(t, err)
		assert.Equal(t, args, decoded)
	})
}

func TestDecodeAgentEntryTruncatedAtEveryOffset(t *testing.T) {
	entry := &AgentEntry{
		AgentID:     "agent-1",
		Name:        "Agent One",
		Description: "does things",
		Owner:       solana.NewWallet().PublicKey(),
		Status:      StatusActive,
		MetadataURI: strPtr("ipfs://meta"),
		Tags:        []string{"defi", "trading"},
		Skills:      []AgentSkill{{ID: "mm", Name: "Market making", Tags: []string{"amm"}}},
		CreatedAt:   1700000000,
		UpdatedAt:   1700000100,
	}
	data, err := encodeWith(entry.MarshalWithEncoder)
	require.NoError(t, err)

	for n := 0; n < len(data); n++ {
		_, err := DecodeAgentEntry(data[:n])
		require.Error(t, err, "prefix length %d", n)
		assert.ErrorIs(t, err, ErrDecode, "prefix length %d", n)

		var decErr *DecodeError
		require.True(t, errors.As(err, &decErr))
		assert.Equal(t, "agent_entry", decErr.Layout)
		assert.LessOrEqual(t, decErr.Offset, n)
	}
}

func TestDecodeStrictFailures(t *testing.T) {
	base := &AgentEntry{
		AgentID:     "x",
		Name:        "n",
		Description: "",
		Status:      StatusPending,
	}
	valid, err := encodeWith(base.MarshalWithEncoder)
	require.NoError(t, err)

	// Offsets within valid: 8 disc, 4+1 id, 4+1 name, 4+0 description, 32 owner.
	statusOffset := 8 + 5 + 5 + 4 + 32
	optionOffset := statusOffset + 1

	mutate := func(fn func([]byte)) []byte {
		out := append([]byte(nil), valid...)
		fn(out)
		return out
	}

	tests := []struct {
		name  string
		data  []byte
		field string
		cause error
	}{
		{
			name:  "unknown status",
			data:  mutate(func(b []byte) { b[statusOffset] = 9 }),
			field: "status",
			cause: errUnknownStatus,
		},
		{
			name:  "option flag out of range",
			data:  mutate(func(b []byte) { b[optionOffset] = 2 }),
			field: "metadata_uri",
			cause: errOptionFlag,
		},
		{
			name:  "invalid utf8",
			data:  mutate(func(b []byte) { b[8+4] = 0xff }),
			field: "agent_id",
			cause: errInvalidUTF8,
		},
		{
			name:  "string longer than maximum",
			data:  mutate(func(b []byte) { b[8] = MaxAgentIDLen + 1 }),
			field: "agent_id",
			cause: errStringTooLong,
		},
		{
			name:  "non-zero trailing bytes",
			data:  append(append([]byte(nil), valid...), 0, 0, 7),
			field: "trailer",
			cause: errTrailingBytes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAgentEntry(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
			assert.ErrorIs(t, err, tt.cause)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.field, decErr.Field)
		})
	}
}

func TestDecodeRejectsTooManyTags(t *testing.T) {
	base := &McpServerEntry{ServerID: "s", Name: "n", Version: "1", EndpointURL: "https://x.io"}
	data, err := encodeWith(base.MarshalWithEncoder)
	require.NoError(t, err)

	// 8 disc, 4+1 id, 4+1 name, 4+1 version, 4+12 endpoint, 32 owner, 1 status, 1 option.
	tagsOffset := 8 + 5 + 5 + 5 + 16 + 32 + 1 + 1
	data[tagsOffset] = MaxServerTags + 1

	_, err = DecodeMcpServerEntry(data)
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, errTooManyItems)
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, "tags", decErr.Field)
	assert.Equal(t, tagsOffset, decErr.Offset-4)
}

func TestDecodeInstructionRejectsTrailingBytes(t *testing.T) {
	data, err := EncodeInstructionData(&DeregisterAgentArgs{AgentID: "abc"})
	require.NoError(t, err)

	_, err = DecodeAgentInstruction(append(data, 0))
	assert.ErrorIs(t, err, errTrailingBytes)
}

func TestDecodeInstructionUnknownDiscriminant(t *testing.T) {
	_, err := DecodeMcpServerInstruction([]byte{7})
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, errDiscriminant)

	_, err = DecodeAgentInstruction(nil)
	assert.ErrorIs(t, err, errTruncated)
}

func TestAccountDiscriminatorsDiffer(t *testing.T) {
	assert.NotEqual(t, AgentEntryDiscriminator, McpServerEntryDiscriminator)
	assert.Len(t, AgentEntryDiscriminator, AccountDiscriminatorLen)
}

func encodeTokenAccount(t *testing.T, acct TokenAccount) []byte {
	t.Helper()
	data, err := encodeWith(func(enc *bin.Encoder) error {
		require.NoError(t, writePublicKey(enc, acct.Mint))
		require.NoError(t, writePublicKey(enc, acct.Owner))
		require.NoError(t, enc.WriteUint64(acct.Amount, bin.LE))
		var tag uint32
		var delegate solana.PublicKey
		if acct.Delegate != nil {
			tag, delegate = 1, *acct.Delegate
		}
		require.NoError(t, enc.WriteUint32(tag, bin.LE))
		require.NoError(t, writePublicKey(enc, delegate))
		require.NoError(t, enc.WriteUint8(acct.State))
		require.NoError(t, enc.WriteBytes(make([]byte, 12), false))
		require.NoError(t, enc.WriteUint64(acct.DelegatedAmount, bin.LE))
		require.NoError(t, enc.WriteUint32(0, bin.LE))
		return enc.WriteBytes(make([]byte, 32), false)
	})
	require.NoError(t, err)
	require.Len(t, data, TokenAccountSize)
	return data
}

func TestDecodeTokenAccount(t *testing.T) {
	delegate := solana.NewWallet().PublicKey()
	want := TokenAccount{
		Mint:            solana.NewWallet().PublicKey(),
		Owner:           solana.NewWallet().PublicKey(),
		Amount:          5 * TokenBaseUnits,
		Delegate:        &delegate,
		State:           1,
		DelegatedAmount: 2 * TokenBaseUnits,
	}

	got, err := DecodeTokenAccount(encodeTokenAccount(t, want))
	require.NoError(t, err)
	assert.Equal(t, &want, got)

	_, err = DecodeTokenAccount(make([]byte, 100))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeErrorMessageNamesField(t *testing.T) {
	_, err := DecodeMcpServerEntry(make([]byte, 10))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mcp_server_entry.server_id"), err.Error())
}
