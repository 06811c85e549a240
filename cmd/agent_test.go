package cmd

import (
	"encoding/json"
	"testing"

	aireg_protocol "aireg-cli/solana"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAgentInstructions(t *testing.T, env *testEnv) []aireg_protocol.AgentInstruction {
	t.Helper()
	var out []aireg_protocol.AgentInstruction
	for _, data := range env.instructionData(env.addrs.AgentRegistry) {
		ix, err := aireg_protocol.DecodeAgentInstruction(data)
		require.NoError(t, err)
		out = append(out, ix)
	}
	return out
}

func TestAgentRegisterCommand(t *testing.T) {
	env := newTestEnv(t)
	setViper(t, jsonOutputKey, true)

	out, err := runCommand(t, newAgentCommand(), "register",
		"--id", "bot", "--name", "Bot", "--metadata-uri", "ipfs://card",
		"--tag", "defi,nlp", "--skill", "mm:Market making:amm,dex")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res["signature"])

	ixs := decodeAgentInstructions(t, env)
	require.Len(t, ixs, 1)
	args, ok := ixs[0].(*aireg_protocol.RegisterAgentArgs)
	require.True(t, ok)
	assert.Equal(t, "bot", args.AgentID)
	assert.Equal(t, "Bot", args.Name)
	require.NotNil(t, args.MetadataURI)
	assert.Equal(t, "ipfs://card", *args.MetadataURI)
	assert.Equal(t, []string{"defi", "nlp"}, args.Tags)
	assert.Equal(t, []aireg_protocol.AgentSkill{{ID: "mm", Name: "Market making", Tags: []string{"amm", "dex"}}}, args.Skills)
}

func TestAgentRegisterCommandRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"too many tags", []string{"--tag", "a,b,c,d,e,f,g,h,i,j,k"}, aireg_protocol.ErrValidation},
		{"bad metadata scheme", []string{"--metadata-uri", "ftp://x"}, aireg_protocol.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			args := append([]string{"register", "--id", "bot", "--name", "Bot"}, tt.args...)
			_, err := runCommand(t, newAgentCommand(), args...)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, env.ft.sentTxs())
		})
	}

	t.Run("malformed skill", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := runCommand(t, newAgentCommand(), "register", "--id", "bot", "--name", "Bot", "--skill", "only-id")
		assert.ErrorContains(t, err, "id:name")
		assert.Empty(t, env.ft.sentTxs())
	})
}

func TestAgentRegisterSimulate(t *testing.T) {
	env := newTestEnv(t)

	out, err := runCommand(t, newAgentCommand(), "register", "--id", "bot", "--name", "Bot", "--simulate")
	require.NoError(t, err)
	assert.Contains(t, out, "Simulation succeeded")
	assert.Contains(t, out, "4200")
	assert.Empty(t, env.ft.sentTxs())
}

func TestAgentUpdateCommand(t *testing.T) {
	env := newTestEnv(t)
	env.putAgent(t, &aireg_protocol.AgentEntry{AgentID: "bot", Name: "Bot", Owner: env.owner, Tags: []string{"old"}})

	_, err := runCommand(t, newAgentCommand(), "update", "--id", "bot", "--description", "new words", "--tag=")
	require.NoError(t, err)

	ixs := decodeAgentInstructions(t, env)
	require.Len(t, ixs, 1)
	args, ok := ixs[0].(*aireg_protocol.UpdateAgentArgs)
	require.True(t, ok)
	require.NotNil(t, args.Description)
	assert.Equal(t, "new words", *args.Description)
	assert.Nil(t, args.Name)
	assert.NotNil(t, args.Tags)
	assert.Empty(t, args.Tags)
	assert.Nil(t, args.Skills)
}

func TestAgentStatusAndDeregisterCommands(t *testing.T) {
	env := newTestEnv(t)
	env.putAgent(t, &aireg_protocol.AgentEntry{AgentID: "bot", Name: "Bot", Owner: env.owner, Status: aireg_protocol.StatusActive})

	_, err := runCommand(t, newAgentCommand(), "status", "inactive", "--id", "bot")
	require.NoError(t, err)
	_, err = runCommand(t, newAgentCommand(), "deregister", "--id", "bot", "--yes")
	require.NoError(t, err)

	ixs := decodeAgentInstructions(t, env)
	require.Len(t, ixs, 2)
	update, ok := ixs[0].(*aireg_protocol.UpdateAgentArgs)
	require.True(t, ok)
	require.NotNil(t, update.Status)
	assert.Equal(t, aireg_protocol.StatusInactive, *update.Status)
	_, ok = ixs[1].(*aireg_protocol.DeregisterAgentArgs)
	assert.True(t, ok)

	_, err = runCommand(t, newAgentCommand(), "status", "sleepy", "--id", "bot")
	assert.Error(t, err)
	assert.Len(t, env.ft.sentTxs(), 2)
}

func TestAgentLookupCommands(t *testing.T) {
	env := newTestEnv(t)
	env.putAgent(t, &aireg_protocol.AgentEntry{AgentID: "a", Name: "Alpha", Owner: env.owner, CreatedAt: 1, Tags: []string{"defi"}})
	env.putAgent(t, &aireg_protocol.AgentEntry{AgentID: "b", Name: "Beta", Owner: env.owner, CreatedAt: 2,
		Skills: []aireg_protocol.AgentSkill{{ID: "summarize", Name: "Summarizer", Tags: []string{"nlp"}}}})

	out, err := runCommand(t, newAgentCommand(), "get", "--id", "a")
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "defi")

	_, err = runCommand(t, newAgentCommand(), "get", "--id", "missing")
	assert.ErrorContains(t, err, "not found")

	setViper(t, jsonOutputKey, true)
	ids := func(out string) []string {
		var entries []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		var got []string
		for _, e := range entries {
			got = append(got, e["agent_id"].(string))
		}
		return got
	}

	out, err = runCommand(t, newAgentCommand(), "search", "--tag", "nlp")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(out))

	out, err = runCommand(t, newAgentCommand(), "search", "alp")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(out))

	out, err = runCommand(t, newAgentCommand(), "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))
}
