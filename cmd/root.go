package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	aireg_protocol "aireg-cli/solana"
	"aireg-cli/storage"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	figure "github.com/common-nighthawk/go-figure"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// logger is replaced in PersistentPreRunE once flags are parsed.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "aireg",
	Short: "aireg manages agents and MCP servers on the Solana AI registries.",
	Long: `An interactive command-line interface for the Solana agent registry and
MCP server registry, with helpers for paying service providers in the
registry token.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              run,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("rpc-url", "", "RPC endpoint (default: the cluster's public endpoint, or Helius when HELIUS_API_KEY is set)")
	flags.String("cluster", "devnet", "cluster (devnet|testnet|mainnet)")
	flags.String("commitment", "confirmed", "commitment level (processed|confirmed|finalized)")
	flags.String("keypair", "", "path to a Solana CLI JSON keypair")
	flags.String("profile", "", "named keypair profile from local storage")
	flags.String("storage-dir", "", "profile storage directory (default ~/.config/aireg)")
	flags.Float64("rps", 0, "client-side RPC request rate limit per second (0 disables)")
	flags.Int("max-attempts", aireg_protocol.DefaultRetryPolicy().MaxAttempts, "transaction submission attempts")
	flags.Duration("confirm-timeout", 0, "wait this long for confirmation after sending (0 returns once accepted)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Bool("json", false, "print machine-readable JSON")

	mustBindFlag(rpcURLKey, "AIREG_RPC_URL", flags.Lookup("rpc-url"))
	mustBindFlag(clusterKey, "AIREG_CLUSTER", flags.Lookup("cluster"))
	mustBindFlag(commitmentKey, "AIREG_COMMITMENT", flags.Lookup("commitment"))
	mustBindFlag(keypairKey, "AIREG_KEYPAIR", flags.Lookup("keypair"))
	mustBindFlag(profileKey, "AIREG_PROFILE", flags.Lookup("profile"))
	mustBindFlag(storageDirKey, "AIREG_STORAGE_DIR", flags.Lookup("storage-dir"))
	mustBindFlag(rpsKey, "AIREG_RPS", flags.Lookup("rps"))
	mustBindFlag(maxAttemptsKey, "AIREG_MAX_ATTEMPTS", flags.Lookup("max-attempts"))
	mustBindFlag(confirmTimeoutKey, "AIREG_CONFIRM_TIMEOUT", flags.Lookup("confirm-timeout"))
	mustBindFlag(verboseKey, "AIREG_VERBOSE", flags.Lookup("verbose"))
	mustBindFlag(jsonOutputKey, "", flags.Lookup("json"))
	if err := viper.BindEnv(heliusAPIKeyKey, "HELIUS_API_KEY"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		newAgentCommand(),
		newMcpCommand(),
		newPayCommand(),
		newWalletCommand(),
		newRegisterCommand(),
		newServeCommand(),
	)
}

func setup(cmd *cobra.Command, args []string) error {
	// A missing .env is normal.
	_ = godotenv.Load()

	l, err := newLogger(viper.GetBool(verboseKey))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l
	return nil
}

// run is the interactive entry point used when no subcommand is given.
func run(cmd *cobra.Command, args []string) error {
	myFigure := figure.NewFigure("AIREG", "larry3d", true)
	fmt.Println(titleStyle.Render(myFigure.String()))

	db, err := storage.Connect(viper.GetString(storageDirKey))
	if err != nil {
		return fmt.Errorf("failed to open profile storage: %w", err)
	}
	defer db.Close()

	for {
		profile, err := runProfileSelection(db)
		if errors.Is(err, terminal.InterruptErr) || errors.Is(err, errExit) {
			fmt.Println("Exiting aireg.")
			return nil
		}
		if err != nil {
			return err
		}
		if err := runInteractive(cmd.Context(), profile); err != nil {
			fmt.Println(warningStyle.Render(err.Error()))
		}
	}
}

var errExit = errors.New("user exited")

const (
	optionCreateProfile = "Create New Profile"
	optionExit          = "Exit"
)

// runProfileSelection lets the user pick or create a keypair profile.
func runProfileSelection(db *storage.JSONDB) (*storage.Profile, error) {
	for {
		names, err := db.GetAllWalletNames()
		if err != nil {
			return nil, fmt.Errorf("failed to get profiles: %w", err)
		}
		if len(names) == 0 {
			fmt.Println(titleStyle.Render("🚀 Welcome to aireg! Let's create your first profile."))
			if err := createProfile(db); err != nil {
				return nil, err
			}
			continue
		}

		selection := ""
		prompt := &survey.Select{
			Message: promptStyle.Render("Choose a profile to continue:"),
			Options: append(names, optionCreateProfile, optionExit),
		}
		if err := survey.AskOne(prompt, &selection); err != nil {
			return nil, err
		}

		switch selection {
		case optionCreateProfile:
			if err := createProfile(db); err != nil {
				fmt.Println(warningStyle.Render(err.Error()))
			}
		case optionExit:
			return nil, errExit
		default:
			return db.GetWallet(selection)
		}
	}
}

func createProfile(db *storage.JSONDB) error {
	name := ""
	if err := survey.AskOne(&survey.Input{Message: "Profile name:", Default: "main"}, &name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	profile, err := db.CreateWallet(name)
	if err != nil {
		return fmt.Errorf("❌ failed to create profile: %w", err)
	}
	fmt.Println(successStyle.Render("\n✅ Profile created!"))
	field(os.Stdout, "Address", profile.PublicKey().String())
	fmt.Println(promptStyle.Render("Fund this address with SOL before registering entries.\n"))
	return nil
}

const (
	menuRegisterAgent  = "Register Agent"
	menuRegisterServer = "Register MCP Server"
	menuMyAgents       = "My Agents"
	menuMyServers      = "My MCP Servers"
	menuBalance        = "View Balance"
	menuSwitch         = "Switch Profile"
)

func runInteractive(ctx context.Context, profile *storage.Profile) error {
	cfg, err := resolveConfig(viper.GetViper(), logger)
	if err != nil {
		return err
	}
	client, err := aireg_protocol.NewClient(cfg, profile.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to create Solana client: %w", err)
	}
	defer client.Close()

	fmt.Printf("\n---\n")
	fmt.Println(titleStyle.Render(fmt.Sprintf("Operating with profile: %s", profile.Name)))
	fmt.Println(promptStyle.Render(fmt.Sprintf("Address: %s", profile.PublicKey())))
	fmt.Printf("---\n\n")

	for {
		choice := ""
		menu := &survey.Select{
			Message: promptStyle.Render("Choose an action:"),
			Options: []string{menuRegisterAgent, menuRegisterServer, menuMyAgents, menuMyServers, menuBalance, menuSwitch},
			Help:    "Use the arrow keys to navigate, and press Enter to select.",
		}
		if err := survey.AskOne(menu, &choice); err != nil {
			return nil
		}

		switch choice {
		case menuRegisterAgent:
			err = registerAgentWizard(ctx, client)
		case menuRegisterServer:
			err = registerMcpServerWizard(ctx, client)
		case menuMyAgents:
			err = listAgents(ctx, client, profile.PublicKey())
		case menuMyServers:
			err = listMcpServers(ctx, client, profile.PublicKey())
		case menuBalance:
			err = showBalances(ctx, client, profile.PublicKey())
		case menuSwitch:
			return nil
		}
		if err != nil {
			fmt.Println(warningStyle.Render(fmt.Sprintf("❌ %v", err)))
		}
		fmt.Println()
	}
}

func listAgents(ctx context.Context, client *aireg_protocol.Client, owner solana.PublicKey) error {
	agents, err := client.Agents().ListByOwner(ctx, owner)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println(promptStyle.Render("No agents registered."))
	}
	for _, a := range agents {
		printAgent(os.Stdout, a)
		fmt.Println()
	}
	return nil
}

func listMcpServers(ctx context.Context, client *aireg_protocol.Client, owner solana.PublicKey) error {
	servers, err := client.McpServers().ListByOwner(ctx, owner)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		fmt.Println(promptStyle.Render("No MCP servers registered."))
	}
	for _, s := range servers {
		printMcpServer(os.Stdout, s)
		fmt.Println()
	}
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, warningStyle.Render(err.Error()))
		stop()
		os.Exit(1)
	}
}
