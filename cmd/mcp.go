package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	aireg_protocol "aireg-cli/solana"

	"github.com/spf13/cobra"
)

func newMcpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mcp",
		Aliases: []string{"server"},
		Short:   "Register, update and look up MCP servers",
	}
	cmd.AddCommand(
		newMcpRegisterCommand(),
		newMcpUpdateCommand(),
		newMcpStatusCommand(),
		newMcpDeregisterCommand(),
		newMcpGetCommand(),
		newMcpListCommand(),
		newMcpSearchCommand(),
		newMcpHistoryCommand(),
		newMcpPingCommand(),
	)
	return cmd
}

func newMcpRegisterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new MCP server owned by your keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			id, _ := cmd.Flags().GetString("id")
			name, _ := cmd.Flags().GetString("name")
			version, _ := cmd.Flags().GetString("version")
			endpoint, _ := cmd.Flags().GetString("endpoint")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			registerArgs := aireg_protocol.RegisterMcpServerArgs{
				ServerID:    id,
				Name:        name,
				Version:     version,
				EndpointURL: endpoint,
				MetadataURI: optionalString(cmd, "metadata-uri"),
				Tags:        tags,
			}

			if simulate, _ := cmd.Flags().GetBool("simulate"); simulate {
				sim, err := client.McpServers().SimulateRegister(cmd.Context(), registerArgs)
				if err != nil {
					return err
				}
				return printSimulation(sim)
			}
			res, err := client.McpServers().Register(cmd.Context(), registerArgs)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("MCP server %q registered", id), res)
		},
	}
	cmd.Flags().String("id", "", "server id (unique per owner)")
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("version", "", "server version, e.g. 1.0.0")
	cmd.Flags().String("endpoint", "", "endpoint URL")
	cmd.Flags().String("metadata-uri", "", "metadata URI (http, https, ipfs or ar)")
	cmd.Flags().StringSlice("tag", nil, "tags (repeat or comma separate, at most 10)")
	cmd.Flags().Bool("simulate", false, "simulate the transaction without sending it")
	for _, f := range []string{"id", "name", "version", "endpoint"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newMcpUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the given fields of an MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := optionalStatus(cmd, "status")
			if err != nil {
				return err
			}
			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			id, _ := cmd.Flags().GetString("id")
			res, err := client.McpServers().Update(cmd.Context(), aireg_protocol.UpdateMcpServerArgs{
				ServerID:    id,
				Name:        optionalString(cmd, "name"),
				Version:     optionalString(cmd, "version"),
				EndpointURL: optionalString(cmd, "endpoint"),
				MetadataURI: optionalString(cmd, "metadata-uri"),
				Status:      status,
				Tags:        optionalStrings(cmd, "tag"),
			})
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("MCP server %q updated", id), res)
		},
	}
	cmd.Flags().String("id", "", "server id")
	cmd.Flags().String("name", "", "new display name")
	cmd.Flags().String("version", "", "new version")
	cmd.Flags().String("endpoint", "", "new endpoint URL")
	cmd.Flags().String("metadata-uri", "", "new metadata URI")
	cmd.Flags().String("status", "", "new status (pending|active|inactive|deregistered)")
	cmd.Flags().StringSlice("tag", nil, `replace the tags (--tag="" clears them)`)
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMcpStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <status>",
		Short: "Set the status of an MCP server",
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
			res, err := client.McpServers().UpdateStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("MCP server %q is now %s", id, status), res)
		},
	}
	cmd.Flags().String("id", "", "server id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMcpDeregisterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deregister",
		Short: "Mark an MCP server as deregistered",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			ok, err := confirmAction(cmd, fmt.Sprintf("Deregister MCP server %q?", id))
			if err != nil || !ok {
				return err
			}
			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.McpServers().Deregister(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("MCP server %q deregistered", id), res)
		},
	}
	cmd.Flags().String("id", "", "server id")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMcpGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one MCP server",
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
			entry, err := client.McpServers().Get(cmd.Context(), id, owner)
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("MCP server %q not found for owner %s", id, owner)
			}
			if jsonOutput() {
				return printJSON(os.Stdout, entry)
			}
			printMcpServer(os.Stdout, entry)
			return nil
		},
	}
	cmd.Flags().String("id", "", "server id")
	cmd.Flags().String("owner", "", "owner public key (default: your keypair)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMcpPingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that an MCP server's endpoint answers over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			client, err := commandClient(false, aireg_protocol.WithHTTPClient(&http.Client{Timeout: timeout}))
			if err != nil {
				return err
			}
			defer client.Close()

			owner, err := ownerOrSigner(cmd, client)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			res, err := client.McpServers().Ping(cmd.Context(), id, owner)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(os.Stdout, res)
			}
			if res.Available {
				fmt.Println(successStyle.Render(fmt.Sprintf("✅ %s is available", id)))
			} else {
				fmt.Println(warningStyle.Render(fmt.Sprintf("❌ %s is unavailable", id)))
			}
			field(os.Stdout, "Endpoint", res.Endpoint)
			if res.StatusCode != 0 {
				field(os.Stdout, "HTTP status", fmt.Sprintf("%d", res.StatusCode))
			}
			field(os.Stdout, "Latency", res.Latency.Round(time.Millisecond).String())
			if res.Error != "" {
				field(os.Stdout, "Error", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().String("id", "", "server id")
	cmd.Flags().String("owner", "", "owner public key (default: your keypair)")
	cmd.Flags().Duration("timeout", aireg_protocol.DefaultPingTimeout, "HTTP timeout")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMcpListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List MCP servers owned by an address",
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
			entries, err := client.McpServers().ListByOwner(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printMcpServers(entries)
		},
	}
	cmd.Flags().String("owner", "", "owner public key (default: your keypair)")
	return cmd
}

func newMcpSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the MCP server registry",
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

			entries, err := client.McpServers().Search(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printMcpServers(entries)
		},
	}
	addSearchFlags(cmd)
	return cmd
}

func newMcpHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transactions for an MCP server",
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
			events, err := client.McpServers().History(cmd.Context(), id, owner, limit)
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
	cmd.Flags().String("id", "", "server id")
	cmd.Flags().String("owner", "", "owner public key (default: your keypair)")
	cmd.Flags().Int("limit", aireg_protocol.DefaultHistoryLimit, "number of transactions")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printMcpServers(entries []*aireg_protocol.McpServerEntry) error {
	if jsonOutput() {
		return printJSON(os.Stdout, entries)
	}
	if len(entries) == 0 {
		fmt.Println(promptStyle.Render("No MCP servers found."))
		return nil
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Println()
		}
		printMcpServer(os.Stdout, e)
	}
	return nil
}
