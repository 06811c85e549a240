package cmd

import (
	"strings"
	"testing"

	aireg_protocol "aireg-cli/solana"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardValidators(t *testing.T) {
	uri := uriValidator("metadata_uri")
	assert.NoError(t, uri(""))
	assert.NoError(t, uri("ipfs://cid"))
	assert.ErrorIs(t, uri("ftp://x"), aireg_protocol.ErrValidation)

	tags := tagsValidator(aireg_protocol.MaxAgentTags, aireg_protocol.MaxAgentTagLen)
	assert.NoError(t, tags(""))
	assert.NoError(t, tags("defi, nlp ,"))
	assert.Error(t, tags(strings.Repeat("t,", aireg_protocol.MaxAgentTags+1)))
	assert.Error(t, tags("ok,"+strings.Repeat("x", aireg_protocol.MaxAgentTagLen+1)))
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, splitTags(""))
	assert.Nil(t, splitTags(" , "))
	assert.Equal(t, []string{"defi", "nlp"}, splitTags("defi, nlp ,"))
}

func TestParseSkill(t *testing.T) {
	skill, err := parseSkill("mm:Market making")
	require.NoError(t, err)
	assert.Equal(t, aireg_protocol.AgentSkill{ID: "mm", Name: "Market making"}, skill)

	skill, err = parseSkill("mm:Market making:amm,dex")
	require.NoError(t, err)
	assert.Equal(t, []string{"amm", "dex"}, skill.Tags)

	for _, bad := range []string{"mm", ":name", "mm:"} {
		_, err := parseSkill(bad)
		assert.Error(t, err, bad)
	}
}

func TestOptionalListFlags(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
		cmd.Flags().StringSlice("tag", nil, "")
		cmd.Flags().StringArray("skill", nil, "")
		return cmd
	}
	parse := func(args ...string) *cobra.Command {
		cmd := newCmd()
		require.NoError(t, cmd.ParseFlags(args))
		return cmd
	}

	cmd := parse()
	assert.Nil(t, optionalStrings(cmd, "tag"))
	skills, err := optionalSkills(cmd, "skill")
	require.NoError(t, err)
	assert.Nil(t, skills)

	cmd = parse("--tag=", "--skill=")
	assert.Equal(t, []string{}, optionalStrings(cmd, "tag"))
	skills, err = optionalSkills(cmd, "skill")
	require.NoError(t, err)
	assert.Equal(t, []aireg_protocol.AgentSkill{}, skills)

	cmd = parse("--tag", "a,b", "--skill", "s:S")
	assert.Equal(t, []string{"a", "b"}, optionalStrings(cmd, "tag"))
	skills, err = optionalSkills(cmd, "skill")
	require.NoError(t, err)
	assert.Equal(t, []aireg_protocol.AgentSkill{{ID: "s", Name: "S"}}, skills)
}
