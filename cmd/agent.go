package cmd

import (
	"fmt"
	"os"

	aireg_protocol "aireg-cli/solana"

	"github.com/spf13/cobra"
)

func newAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Register, update and look up agents",
	}
	cmd.AddCommand(
		newAgentRegisterCommand(),
		newAgentUpdateCommand(),
		newAgentStatusCommand(),
		newAgentDeregisterCommand(),
		newAgentGetCommand(),
		newAgentListCommand(),
		newAgentSearchCommand(),
		newAgentHistoryCommand(),
	)
	return cmd
}

func newAgentRegisterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new agent owned by your keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			id, _ := cmd.Flags().GetString("id")
			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			skills, err := skillsFlag(cmd, "skill")
			if err != nil {
				return err
			}
			registerArgs := aireg_protocol.RegisterAgentArgs{
				AgentID:     id,
				Name:        name,
				Description: description,
				MetadataURI: optionalString(cmd, "metadata-uri"),
				Tags:        tags,
				Skills:      skills,
			}

			if simulate, _ := cmd.Flags().GetBool("simulate"); simulate {
				sim, err := client.Agents().SimulateRegister(cmd.Context(), registerArgs)
				if err != nil {
					return err
				}
				return printSimulation(sim)
			}
			res, err := client.Agents().Register(cmd.Context(), registerArgs)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("Agent %q registered", id), res)
		},
	}
	cmd.Flags().String("id", "", "agent id (unique per owner)")
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("description", "", "description")
	cmd.Flags().String("metadata-uri", "", "metadata URI (http, https, ipfs or ar)")
	cmd.Flags().StringSlice("tag", nil, "tags (repeat or comma separate, at most 10)")
	cmd.Flags().StringArray("skill", nil, "skill as id:name[:tag,tag] (repeatable, at most 10)")
	cmd.Flags().Bool("simulate", false, "simulate the transaction without sending it")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAgentUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the given fields of an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			status, err := optionalStatus(cmd, "status")
			if err != nil {
				return err
			}
			skills, err := optionalSkills(cmd, "skill")
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			res, err := client.Agents().Update(cmd.Context(), aireg_protocol.UpdateAgentArgs{
				AgentID:     id,
				Name:        optionalString(cmd, "name"),
				Description: optionalString(cmd, "description"),
				MetadataURI: optionalString(cmd, "metadata-uri"),
				Status:      status,
				Tags:        optionalStrings(cmd, "tag"),
				Skills:      skills,
			})
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("Agent %q updated", id), res)
		},
	}
	cmd.Flags().String("id", "", "agent id")
	cmd.Flags().String("name", "", "new display name")
	cmd.Flags().String("description", "", "new description")
	cmd.Flags().String("metadata-uri", "", "new metadata URI")
	cmd.Flags().String("status", "", "new status (pending|active|inactive|deregistered)")
	cmd.Flags().StringSlice("tag", nil, `replace the tags (--tag="" clears them)`)
	cmd.Flags().StringArray("skill", nil, `replace the skills, each id:name[:tag,tag] (--skill="" clears them)`)
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAgentStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <status>",
		Short: "Set the status of an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := aireg_protocol.ParseStatus(args[0])
			if err != nil {
				return err
			}
			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			id, _ := cmd.Flags().GetString("id")
			res, err := client.Agents().UpdateStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("Agent %q is now %s", id, status), res)
		},
	}
	cmd.Flags().String("id", "", "agent id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAgentDeregisterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deregister",
		Short: "Mark an agent as deregistered",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			ok, err := confirmAction(cmd, fmt.Sprintf("Deregister agent %q?", id))
			if err != nil || !ok {
				return err
			}
			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Agents().Deregister(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("Agent %q deregistered", id), res)
		},
	}
	cmd.Flags().String("id", "", "agent id")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAgentGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := commandClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			owner, err := ownerOrSigner(cmd, client)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			entry, err := client.Agents().Get(cmd.Context(), id, owner)
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("agent %q not found for owner %s", id, owner)
			}
			if jsonOutput() {
				return printJSON(os.Stdout, entry)
			}
			printAgent(os.Stdout, entry)
			return nil
		},
	}
	cmd.Flags().String("id", "", "agent id")
	cmd.Flags().String("owner", "", "owner public key (default: your keypair)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAgentListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents owned by an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := commandClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			owner, err := ownerOrSigner(cmd, client)
			if err != nil {
				return err
			}
			entries, err := client.Agents().ListByOwner(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printAgents(entries)
		},
	}
	cmd.Flags().String("owner", "", "owner public key (default: your keypair)")
	return cmd
}

func newAgentSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the agent registry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := searchFilter(cmd, args)
			if err != nil {
				return err
			}
			client, err := commandClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			entries, err := client.Agents().Search(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printAgents(entries)
		},
	}
	addSearchFlags(cmd)
	return cmd
}

func newAgentHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transactions for an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := commandClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			owner, err := ownerOrSigner(cmd, client)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			limit, _ := cmd.Flags().GetInt("limit")
			events, err := client.Agents().History(cmd.Context(), id, owner, limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(os.Stdout, events)
			}
			printHistory(os.Stdout, events)
			return nil
		},
	}
	cmd.Flags().String("id", "", "agent id")
	cmd.Flags().String("owner", "", "owner public key (default: your keypair)")
	cmd.Flags().Int("limit", aireg_protocol.DefaultHistoryLimit, "number of transactions")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("owner", "", "only entries owned by this public key")
	cmd.Flags().StringSlice("status", nil, "only entries in these states")
	cmd.Flags().StringSlice("tag", nil, "only entries carrying all of these tags")
	cmd.Flags().Int("limit", 0, "maximum number of results (0 for all)")
}

func searchFilter(cmd *cobra.Command, args []string) (aireg_protocol.EntryFilter, error) {
	var filter aireg_protocol.EntryFilter
	if len(args) == 1 {
		filter.Query = args[0]
	}
	if raw, _ := cmd.Flags().GetString("owner"); raw != "" {
		owner, err := parsePublicKey("owner", raw)
		if err != nil {
			return filter, err
		}
		filter.Owner = &owner
	}
	status, err := statusFilter(cmd)
	if err != nil {
		return filter, err
	}
	filter.Status = status
	filter.Tags, _ = cmd.Flags().GetStringSlice("tag")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	return filter, nil
}

func printAgents(entries []*aireg_protocol.AgentEntry) error {
	if jsonOutput() {
		return printJSON(os.Stdout, entries)
	}
	if len(entries) == 0 {
		fmt.Println(promptStyle.Render("No agents found."))
		return nil
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Println()
		}
		printAgent(os.Stdout, e)
	}
	return nil
}

func printSimulation(sim *aireg_protocol.SimulationResult) error {
	if jsonOutput() {
		return printJSON(os.Stdout, sim)
	}
	if sim.Err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("❌ Simulation failed: %v", sim.Err)))
	} else {
		fmt.Println(successStyle.Render("✅ Simulation succeeded"))
	}
	field(os.Stdout, "Compute units", fmt.Sprintf("%d", sim.UnitsConsumed))
	for _, line := range sim.Logs {
		fmt.Println(promptStyle.Render("  " + line))
	}
	return nil
}
