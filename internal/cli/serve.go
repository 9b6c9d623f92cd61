package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"digital.vasic.nback/pkg/config"
	"digital.vasic.nback/pkg/logging"
	"digital.vasic.nback/pkg/monitor"
	"digital.vasic.nback/pkg/orchestrator"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr  string
		seed  uint64
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket display and live monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Monitor.Addr = addr
			}
			if !flags.verbose {
				gin.SetMode(gin.ReleaseMode)
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
			collector := monitor.NewEventCollector(monitor.DefaultEventLimit)
			orch, err := rt.newOrchestrator(order, rng, orchestrator.WithObserver(collector.Observer()))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch && flags.configPath != "" {
				if _, err := config.Watch(ctx, flags.configPath, reloadTask(orch, rt.logger)); err != nil {
					return err
				}
			}

			srv := monitor.NewServer(
				cfg.Monitor.Addr,
				collector,
				monitor.NewDashboardData(cfg.Participant.ID, levelsOf(order)...),
				monitor.WithController(orch),
				monitor.WithMetrics(rt.metrics),
				monitor.WithLogger(rt.logger),
				monitor.WithRunContext(ctx),
				monitor.WithMotionRecorder(rt.motion),
			)
			rt.logger.Info("monitor listening",
				logging.StringField("addr", cfg.Monitor.Addr),
				logging.StringField("order", order.String()),
			)
			err = srv.Start(ctx)
			orch.ExitEarly()
			if _, serr := rt.writeSummary(orch.Records()); serr != nil {
				rt.logger.Error("write run summary failed", logging.ErrorField(serr))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides monitor.addr)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 = random)")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload task timing when the config file changes")
	return cmd
}

// reloadTask applies reloaded task parameters to the next session.
func reloadTask(orch *orchestrator.Orchestrator, logger logging.Logger) config.ReloadFunc {
	return func(cfg config.Config, err error) {
		if err != nil {
			logger.Warn("config reload rejected", logging.ErrorField(err))
			return
		}
		if err := orch.SetConfig(cfg.SessionConfig()); err != nil {
			logger.Warn("config reload rejected", logging.ErrorField(err))
			return
		}
		logger.Info("task config reloaded",
			logging.IntField("display_ms", cfg.Task.DisplayMs),
			logging.IntField("hidden_ms", cfg.Task.HiddenMs),
		)
	}
}
