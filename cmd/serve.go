package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aireg-cli/api"
	aireg_protocol "aireg-cli/solana"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve registry lookups and metrics over HTTP",
		Long: `Starts a read-only JSON API for the agent and MCP server registries.
The API exposes lookups, search, history, the stored profile addresses
and Prometheus metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			timeout, _ := cmd.Flags().GetDuration("request-timeout")

			cfg, err := resolveConfig(viper.GetViper(), logger)
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			cfg.Registerer = reg

			// Lookups never sign, so a missing keypair is fine.
			client, err := aireg_protocol.NewClient(cfg, nil)
			if err != nil {
				return fmt.Errorf("failed to create Solana client: %w", err)
			}
			defer client.Close()

			db, err := openStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			handler := api.NewHandler(client.Agents(), client.McpServers(), logger,
				api.WithProfiles(db),
				api.WithMetrics(reg),
				api.WithRequestTimeout(timeout),
			)
			srv := &http.Server{
				Addr:              listen,
				Handler:           handler.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serve(cmd.Context(), srv)
		},
	}
	cmd.Flags().String("listen", ":8089", "address to listen on")
	cmd.Flags().Duration("request-timeout", 30*time.Second, "upper bound for registry calls per request")
	return cmd
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", srv.Addr))
		fmt.Println(successStyle.Render(fmt.Sprintf("🌐 Serving registry API on %s", srv.Addr)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logger.Info("api shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}
