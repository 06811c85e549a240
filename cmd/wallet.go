package cmd

import (
	"context"
	"fmt"
	"os"

	aireg_protocol "aireg-cli/solana"
	"aireg-cli/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newWalletCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage keypairs and check balances",
	}
	cmd.AddCommand(
		newWalletNewCommand(),
		newWalletImportCommand(),
		newWalletListCommand(),
		newWalletShowCommand(),
		newWalletBalanceCommand(),
		newWalletDeleteCommand(),
	)
	return cmd
}

func openStorage() (*storage.JSONDB, error) {
	db, err := storage.Connect(viper.GetString(storageDirKey))
	if err != nil {
		return nil, fmt.Errorf("failed to open profile storage: %w", err)
	}
	return db, nil
}

func newWalletNewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a keypair as a named profile or a keypair file",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			out, _ := cmd.Flags().GetString("out")

			var address solana.PublicKey
			var location string
			if name != "" {
				db, err := openStorage()
				if err != nil {
					return err
				}
				defer db.Close()
				profile, err := db.CreateWallet(name)
				if err != nil {
					return err
				}
				address, location = profile.PublicKey(), "profile "+name
			} else {
				if out == "" {
					path, err := aireg_protocol.DefaultWalletPath()
					if err != nil {
						return err
					}
					out = path
				}
				wallet, err := aireg_protocol.CreateWallet(out)
				if err != nil {
					return err
				}
				address, location = wallet.PublicKey(), out
			}

			if jsonOutput() {
				return printJSON(os.Stdout, map[string]string{"address": address.String(), "location": location})
			}
			fmt.Println(successStyle.Render("✅ Keypair created"))
			field(os.Stdout, "Address", address.String())
			field(os.Stdout, "Saved to", location)
			return nil
		},
	}
	cmd.Flags().String("name", "", "store the keypair as a named profile")
	cmd.Flags().String("out", "", "keypair file path (default ~/.config/aireg/wallet.json)")
	cmd.MarkFlagsMutuallyExclusive("name", "out")
	return cmd
}

func newWalletImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <keypair-file>",
		Short: "Store a Solana CLI keypair file as a named profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := aireg_protocol.LoadWallet(args[0])
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer db.Close()
			profile, err := db.SaveWallet(name, wallet.PrivateKey)
			if err != nil {
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✅ Imported profile %s", profile.Name)))
			field(os.Stdout, "Address", profile.PublicKey().String())
			return nil
		},
	}
	cmd.Flags().String("name", "", "profile name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newWalletListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer db.Close()
			addrs, err := db.Addresses()
			if err != nil {
				return err
			}
			names, err := db.GetAllWalletNames()
			if err != nil {
				return err
			}
			if jsonOutput() {
				out := make(map[string]string, len(addrs))
				for name, key := range addrs {
					out[name] = key.String()
				}
				return printJSON(os.Stdout, out)
			}
			if len(names) == 0 {
				fmt.Println(promptStyle.Render("No profiles yet. Run `aireg wallet new --name <name>`."))
				return nil
			}
			for _, name := range names {
				field(os.Stdout, name, addrs[name].String())
			}
			return nil
		},
	}
}

func newWalletShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the address of the configured keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := loadSigner(viper.GetViper())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(os.Stdout, map[string]string{"address": signer.PublicKey().String()})
			}
			fmt.Println(signer.PublicKey())
			return nil
		},
	}
}

func newWalletBalanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show SOL and registry token balances",
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
			return showBalances(cmd.Context(), client, owner)
		},
	}
	cmd.Flags().String("owner", "", "address to check (default: your keypair)")
	return cmd
}

func newWalletDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := confirmAction(cmd, fmt.Sprintf("Delete profile %q? The private key cannot be recovered.", args[0]))
			if err != nil || !ok {
				return err
			}
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.DeleteWallet(args[0]); err != nil {
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✅ Deleted profile %s", args[0])))
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// showBalances prints the SOL balance and the registry token balance of owner.
func showBalances(ctx context.Context, client *aireg_protocol.Client, owner solana.PublicKey) error {
	lamports, err := client.GetBalance(ctx, owner)
	if err != nil {
		return err
	}
	acct, err := client.GetTokenAccount(ctx, owner)
	if err != nil {
		return err
	}
	var units uint64
	if acct != nil {
		units = acct.Amount
	}

	if jsonOutput() {
		return printJSON(os.Stdout, map[string]any{
			"address":      owner.String(),
			"lamports":     lamports,
			"token_units":  units,
			"token_amount": aireg_protocol.FormatTokens(units),
		})
	}
	field(os.Stdout, "Address", owner.String())
	field(os.Stdout, "SOL", formatSOL(lamports))
	if acct == nil {
		field(os.Stdout, "Tokens", promptStyle.Render("no token account"))
	} else {
		field(os.Stdout, "Tokens", formatTokenAmount(units))
	}
	return nil
}
