package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/supplystack/chaincommand/internal/orchestrator"
	"github.com/supplystack/chaincommand/internal/server"
)

var serveAutostart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve initializes the full agent system and exposes it over HTTP:
dashboard reads, simulation control, human approval decisions, and a
live event stream. The simulation loop starts on request (POST
/api/simulation/start) unless --autostart is given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "start the simulation loop immediately")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(cfg, log)
	if err := orch.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	if serveAutostart {
		orch.StartLoop(context.Background())
	}

	srv := server.New(cfg.Server, orch, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		orch.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	log.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server_shutdown_error", "error", err)
	}
	orch.Shutdown(shutdownCtx)
	return nil
}
