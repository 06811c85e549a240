package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	aireg_protocol "aireg-cli/solana"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

var errCancelled = errors.New("registration cancelled")

func newRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Interactively register an agent or MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := ""
			prompt := &survey.Select{
				Message: "What do you want to register?",
				Options: []string{menuRegisterAgent, menuRegisterServer},
			}
			if err := survey.AskOne(prompt, &kind); err != nil {
				return err
			}

			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			if kind == menuRegisterServer {
				err = registerMcpServerWizard(cmd.Context(), client)
			} else {
				err = registerAgentWizard(cmd.Context(), client)
			}
			if errors.Is(err, errCancelled) {
				fmt.Println(promptStyle.Render(err.Error()))
				return nil
			}
			return err
		},
	}
}

// uriValidator accepts an empty answer or a URI the registry will store.
func uriValidator(field string) survey.Validator {
	return func(ans interface{}) error {
		s, _ := ans.(string)
		if s == "" {
			return nil
		}
		return aireg_protocol.ValidateURI(field, s, aireg_protocol.MaxMetadataURILen)
	}
}

// splitTags turns a comma separated answer into tags, dropping blanks.
func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// tagsValidator checks a comma separated answer against the tag limits.
func tagsValidator(maxCount, maxLen int) survey.Validator {
	return func(ans interface{}) error {
		s, _ := ans.(string)
		tags := splitTags(s)
		if len(tags) > maxCount {
			return fmt.Errorf("at most %d tags allowed, got %d", maxCount, len(tags))
		}
		for _, t := range tags {
			if len(t) > maxLen {
				return fmt.Errorf("tag %q is longer than %d bytes", t, maxLen)
			}
		}
		return nil
	}
}

func optionalAnswer(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// registerAgentWizard guides the user through agent registration.
func registerAgentWizard(ctx context.Context, client *aireg_protocol.Client) error {
	fmt.Println(promptStyle.Render("\n🤖 Agent Registration"))
	fmt.Println(promptStyle.Render("--------------------------"))

	answers := struct {
		ID          string `survey:"id"`
		Name        string `survey:"name"`
		Description string `survey:"description"`
		MetadataURI string `survey:"metadatauri"`
		Tags        string `survey:"tags"`
	}{}
	questions := []*survey.Question{
		{
			Name:     "id",
			Prompt:   &survey.Input{Message: "Agent ID:", Help: "Unique among your agents. Letters, digits, '-' and '_' work best."},
			Validate: survey.ComposeValidators(survey.Required, survey.MaxLength(aireg_protocol.MaxAgentIDLen)),
		},
		{
			Name:     "name",
			Prompt:   &survey.Input{Message: "Name:"},
			Validate: survey.ComposeValidators(survey.Required, survey.MaxLength(aireg_protocol.MaxAgentNameLen)),
		},
		{
			Name:     "description",
			Prompt:   &survey.Multiline{Message: "Description:"},
			Validate: survey.MaxLength(aireg_protocol.MaxAgentDescriptionLen),
		},
		{
			Name:     "metadatauri",
			Prompt:   &survey.Input{Message: "Metadata URI (optional):", Help: "http, https, ipfs or ar URI pointing at the agent card."},
			Validate: uriValidator("metadata_uri"),
		},
		{
			Name:     "tags",
			Prompt:   &survey.Input{Message: "Tags (comma separated, optional):"},
			Validate: tagsValidator(aireg_protocol.MaxAgentTags, aireg_protocol.MaxAgentTagLen),
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	args := aireg_protocol.RegisterAgentArgs{
		AgentID:     answers.ID,
		Name:        answers.Name,
		Description: answers.Description,
		MetadataURI: optionalAnswer(answers.MetadataURI),
		Tags:        splitTags(answers.Tags),
	}
	if err := args.Validate(); err != nil {
		return err
	}
	if ok, err := confirmSubmit(fmt.Sprintf("Register agent %q?", args.AgentID)); err != nil || !ok {
		if err == nil {
			err = errCancelled
		}
		return err
	}

	fmt.Println(promptStyle.Render("\nSending registration transaction... Please wait."))
	res, err := client.Agents().Register(ctx, args)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return printResult(os.Stdout, "Agent Registration Successful!", res)
}

// registerMcpServerWizard guides the user through MCP server registration.
func registerMcpServerWizard(ctx context.Context, client *aireg_protocol.Client) error {
	fmt.Println(promptStyle.Render("\n🛰  MCP Server Registration"))
	fmt.Println(promptStyle.Render("--------------------------"))

	answers := struct {
		ID          string `survey:"id"`
		Name        string `survey:"name"`
		Version     string `survey:"version"`
		Endpoint    string `survey:"endpoint"`
		MetadataURI string `survey:"metadatauri"`
		Tags        string `survey:"tags"`
	}{}
	questions := []*survey.Question{
		{
			Name:     "id",
			Prompt:   &survey.Input{Message: "Server ID:", Help: "Unique among your MCP servers."},
			Validate: survey.ComposeValidators(survey.Required, survey.MaxLength(aireg_protocol.MaxServerIDLen)),
		},
		{
			Name:     "name",
			Prompt:   &survey.Input{Message: "Name:"},
			Validate: survey.ComposeValidators(survey.Required, survey.MaxLength(aireg_protocol.MaxServerNameLen)),
		},
		{
			Name:     "version",
			Prompt:   &survey.Input{Message: "Version:", Default: "1.0.0"},
			Validate: survey.ComposeValidators(survey.Required, survey.MaxLength(aireg_protocol.MaxServerVersionLen)),
		},
		{
			Name:   "endpoint",
			Prompt: &survey.Input{Message: "Endpoint URL:"},
			Validate: func(ans interface{}) error {
				s, _ := ans.(string)
				return aireg_protocol.ValidateURI("endpoint_url", s, aireg_protocol.MaxServerEndpointLen)
			},
		},
		{
			Name:     "metadatauri",
			Prompt:   &survey.Input{Message: "Metadata URI (optional):"},
			Validate: uriValidator("metadata_uri"),
		},
		{
			Name:     "tags",
			Prompt:   &survey.Input{Message: "Tags (comma separated, optional):"},
			Validate: tagsValidator(aireg_protocol.MaxServerTags, aireg_protocol.MaxServerTagLen),
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	args := aireg_protocol.RegisterMcpServerArgs{
		ServerID:    answers.ID,
		Name:        answers.Name,
		Version:     answers.Version,
		EndpointURL: answers.Endpoint,
		MetadataURI: optionalAnswer(answers.MetadataURI),
		Tags:        splitTags(answers.Tags),
	}
	if err := args.Validate(); err != nil {
		return err
	}
	if ok, err := confirmSubmit(fmt.Sprintf("Register MCP server %q?", args.ServerID)); err != nil || !ok {
		if err == nil {
			err = errCancelled
		}
		return err
	}

	fmt.Println(promptStyle.Render("\nSending registration transaction... Please wait."))
	res, err := client.McpServers().Register(ctx, args)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return printResult(os.Stdout, "MCP Server Registration Successful!", res)
}

func confirmSubmit(message string) (bool, error) {
	ok := true
	err := survey.AskOne(&survey.Confirm{Message: message, Default: true}, &ok)
	return ok, err
}
