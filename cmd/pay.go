package cmd

import (
	"fmt"
	"os"
	"time"

	aireg_protocol "aireg-cli/solana"

	"github.com/dustin/go-humanize"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay service providers in the registry token",
	}
	cmd.PersistentFlags().String("provider", "", "provider public key")
	_ = cmd.MarkPersistentFlagRequired("provider")
	cmd.AddCommand(
		newPayPrepayCommand(),
		newPayUsageCommand(),
		newPayStreamCommand(),
		newPayBalanceCommand(),
		newPayWithdrawCommand(),
	)
	return cmd
}

func providerFlag(cmd *cobra.Command) (solana.PublicKey, error) {
	raw, _ := cmd.Flags().GetString("provider")
	return parsePublicKey("provider", raw)
}

func newPayPrepayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepay",
		Short: "Allow a provider to draw up to an amount from your token account",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFlag(cmd)
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetFloat64("amount")

			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Payments().CreatePrepayEscrow(cmd.Context(), provider, amount)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("Escrow of %s tokens approved for %s", humanize.Ftoa(amount), provider), res)
		},
	}
	cmd.Flags().Float64("amount", 0, "tokens to make available")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newPayUsageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Transfer tokens to a provider for usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFlag(cmd)
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetFloat64("amount")

			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Payments().PayPerUsage(cmd.Context(), provider, amount)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("Paid %s tokens to %s", humanize.Ftoa(amount), provider), res)
		},
	}
	cmd.Flags().Float64("amount", 0, "tokens to transfer")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newPayStreamCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Pay a provider at a fixed rate until the duration elapses",
		Long: `Pays rate*interval tokens every interval. The command stays in the
foreground and reports each installment; interrupting it stops the stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFlag(cmd)
			if err != nil {
				return err
			}
			rate, _ := cmd.Flags().GetFloat64("rate")
			duration, _ := cmd.Flags().GetDuration("duration")
			interval, _ := cmd.Flags().GetDuration("interval")

			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			stream, err := client.Payments().CreatePaymentStream(ctx, provider, rate, duration, interval)
			if err != nil {
				return err
			}
			if !jsonOutput() {
				fmt.Println(titleStyle.Render(fmt.Sprintf("Streaming to %s", provider)))
				field(os.Stdout, "Stream", stream.ID.String())
				field(os.Stdout, "Installment", formatTokenAmount(stream.PerPayment))
				field(os.Stdout, "Interval", stream.Interval.String())
				field(os.Stdout, "Payments", fmt.Sprintf("%d", stream.Count))
			}

			go func() {
				<-ctx.Done()
				stream.Stop()
			}()
			start := time.Now()
			for p := range stream.Payments() {
				if jsonOutput() {
					out := map[string]any{"seq": p.Seq, "base_units": p.BaseUnits}
					if p.Err != nil {
						out["error"] = p.Err.Error()
					} else {
						out["signature"] = p.Signature.String()
					}
					_ = printJSON(os.Stdout, out)
					continue
				}
				if p.Err != nil {
					fmt.Println(warningStyle.Render(fmt.Sprintf("❌ payment %d/%d failed: %v", p.Seq, stream.Count, p.Err)))
					continue
				}
				fmt.Printf("%s payment %d/%d  %s  %s\n",
					successStyle.Render("✅"), p.Seq, stream.Count, formatTokenAmount(p.BaseUnits), p.Signature)
			}
			if err := stream.Wait(); err != nil {
				return err
			}
			logger.Debug("payment stream finished",
				zap.String("stream_id", stream.ID.String()),
				zap.Duration("elapsed", time.Since(start)),
			)
			if ctx.Err() != nil && !jsonOutput() {
				fmt.Println(promptStyle.Render("Stream stopped."))
			}
			return nil
		},
	}
	cmd.Flags().Float64("rate", 0, "tokens per second")
	cmd.Flags().Duration("duration", time.Minute, "total stream duration")
	cmd.Flags().Duration("interval", aireg_protocol.DefaultStreamInterval, "time between payments")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}

func newPayBalanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show how much a provider may still draw from an escrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFlag(cmd)
			if err != nil {
				return err
			}

			client, err := commandClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			payer, err := ownerOrSigner(cmd, client)
			if err != nil {
				return err
			}
			units, err := client.Payments().EscrowBalance(cmd.Context(), payer, provider)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(os.Stdout, map[string]any{
					"payer":      payer.String(),
					"provider":   provider.String(),
					"base_units": units,
					"tokens":     aireg_protocol.FormatTokens(units),
				})
			}
			field(os.Stdout, "Payer", payer.String())
			field(os.Stdout, "Provider", provider.String())
			field(os.Stdout, "Escrow", formatTokenAmount(units))
			return nil
		},
	}
	cmd.Flags().String("owner", "", "payer public key (default: your keypair)")
	return cmd
}

func newPayWithdrawCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Reduce or revoke a provider's escrow allowance",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := providerFlag(cmd)
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetFloat64("amount")

			client, err := commandClient(true)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Payments().WithdrawFromEscrow(cmd.Context(), provider, amount)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, fmt.Sprintf("Withdrew %s tokens from escrow", humanize.Ftoa(amount)), res)
		},
	}
	cmd.Flags().Float64("amount", 0, "tokens to withdraw")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
