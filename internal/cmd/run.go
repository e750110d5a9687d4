package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supplystack/chaincommand/internal/console"
	"github.com/supplystack/chaincommand/internal/orchestrator"
)

var (
	runCycles    int
	runInventory bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run decision cycles in the terminal",
	Long: `Run initializes the agent system and executes a fixed number of
decision cycles, printing a rendered report after each one. Useful for
demos and for inspecting agent behavior without the HTTP server.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runCycles, "cycles", "n", 5, "number of decision cycles to run")
	runCmd.Flags().BoolVar(&runInventory, "inventory", false, "print the inventory table after the last cycle")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if runCycles < 1 {
		return fmt.Errorf("--cycles must be at least 1")
	}

	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	// The monitor adds nothing to a fixed cycle run.
	cfg.Simulation.EnableMonitoring = false

	ctx := cmd.Context()
	orch := orchestrator.New(cfg, log)
	if err := orch.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}
	defer orch.Shutdown(ctx)

	out := cmd.OutOrStdout()
	for i := 0; i < runCycles; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := orch.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("cycle %d failed: %w", i+1, err)
		}
		fmt.Fprintln(out, console.RenderCycle(res))
	}

	if runInventory {
		fmt.Fprintln(out, console.RenderInventory(orch.State().Products()))
	}
	return nil
}
