package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"digital.vasic.nback/pkg/logging"
	"digital.vasic.nback/pkg/orchestrator"
)

func runCmd(flags *globalFlags) *cobra.Command {
	var seed uint64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the n-back task in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			rng := newRand(seed)
			order, err := cfg.LevelOrder(rng)
			if err != nil {
				return err
			}
			term := newTerminal(cmd.OutOrStdout())
			orch, err := rt.newOrchestrator(order, rng, orchestrator.WithObserver(term.observe))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := runTerminal(ctx, orch, readLines(cmd.InOrStdin()), term)
			if errors.Is(runErr, context.Canceled) {
				runErr = nil
			}
			summary, err := rt.writeSummary(orch.Records())
			if err != nil {
				rt.logger.Error("write run summary failed", logging.ErrorField(err))
			} else if summary != nil {
				term.printf("Average accuracy %.2f%% over %d levels. Results in %s\n",
					summary.AverageAccuracy, len(summary.Levels), cfg.Output.Dir)
			}
			return runErr
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed for sequences and shuffled orders (0 = random)")
	return cmd
}
