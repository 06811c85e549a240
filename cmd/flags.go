package cmd

import (
	"fmt"
	"strings"

	aireg_protocol "aireg-cli/solana"

	"github.com/AlecAivazis/survey/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// clientOptions are applied to every client a command creates.
var clientOptions []aireg_protocol.ClientOption

func commandClient(requireSigner bool, opts ...aireg_protocol.ClientOption) (*aireg_protocol.Client, error) {
	all := append(append([]aireg_protocol.ClientOption(nil), clientOptions...), opts...)
	return newClient(viper.GetViper(), logger, requireSigner, all...)
}

// optionalString returns the flag value only when the user set it.
func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

// optionalStrings returns nil when the flag was not given. An explicit empty
// value such as --tag="" yields an empty slice, which clears the list.
func optionalStrings(cmd *cobra.Command, name string) []string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetStringSlice(name)
	if v == nil {
		v = []string{}
	}
	return v
}

// parseSkill reads "id:name" or "id:name:tag1,tag2".
func parseSkill(raw string) (aireg_protocol.AgentSkill, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return aireg_protocol.AgentSkill{}, fmt.Errorf("invalid skill %q: want id:name[:tag,tag]", raw)
	}
	skill := aireg_protocol.AgentSkill{ID: parts[0], Name: parts[1]}
	if len(parts) == 3 && parts[2] != "" {
		skill.Tags = strings.Split(parts[2], ",")
	}
	return skill, nil
}

func skillsFlag(cmd *cobra.Command, name string) ([]aireg_protocol.AgentSkill, error) {
	raw, _ := cmd.Flags().GetStringArray(name)
	var out []aireg_protocol.AgentSkill
	for _, r := range raw {
		if r == "" {
			continue
		}
		skill, err := parseSkill(r)
		if err != nil {
			return nil, err
		}
		out = append(out, skill)
	}
	return out, nil
}

// optionalSkills is skillsFlag for updates: nil unless the flag was given.
func optionalSkills(cmd *cobra.Command, name string) ([]aireg_protocol.AgentSkill, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	skills, err := skillsFlag(cmd, name)
	if skills == nil && err == nil {
		skills = []aireg_protocol.AgentSkill{}
	}
	return skills, err
}

func optionalStatus(cmd *cobra.Command, name string) (*aireg_protocol.Status, error) {
	raw := optionalString(cmd, name)
	if raw == nil {
		return nil, nil
	}
	s, err := aireg_protocol.ParseStatus(*raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func parsePublicKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return key, nil
}

// ownerOrSigner returns --owner when given, otherwise the client's signer.
func ownerOrSigner(cmd *cobra.Command, client *aireg_protocol.Client) (solana.PublicKey, error) {
	if raw, _ := cmd.Flags().GetString("owner"); raw != "" {
		return parsePublicKey("owner", raw)
	}
	signer, err := client.Signer()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("pass --owner or configure a keypair: %w", err)
	}
	return signer.PublicKey(), nil
}

func statusFilter(cmd *cobra.Command) ([]aireg_protocol.Status, error) {
	raw, _ := cmd.Flags().GetStringSlice("status")
	out := make([]aireg_protocol.Status, 0, len(raw))
	for _, r := range raw {
		s, err := aireg_protocol.ParseStatus(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// confirmAction asks before an irreversible step unless --yes was passed.
func confirmAction(cmd *cobra.Command, message string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
