package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gzhole/promptshield/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for the browser extension and dashboard",
	Long: `Serve the PromptShield API and the Prometheus metrics endpoint.

  promptshield serve
  PROMPTSHIELD_ADDR=:8080 promptshield serve`,
	RunE: serveCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := rt.cfg.Server.MetricsAddr; addr != "" {
		go func() {
			rt.log.Info().Str("addr", addr).Msg("metrics listening")
			if err := server.StartMetrics(ctx, addr); err != nil {
				rt.log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	srv := server.New(rt.pipeline, rt.store, rt.cfg.Server.AllowedOrigins, rt.log)
	err = srv.Start(ctx, rt.cfg.Server.Addr)
	if err == nil || ctx.Err() != nil {
		rt.log.Info().Msg("shutting down")
		return nil
	}
	return err
}
