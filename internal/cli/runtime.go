package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"digital.vasic.nback/pkg/config"
	"digital.vasic.nback/pkg/logging"
	"digital.vasic.nback/pkg/metrics"
	"digital.vasic.nback/pkg/motion"
	"digital.vasic.nback/pkg/orchestrator"
	"digital.vasic.nback/pkg/report"
	"digital.vasic.nback/pkg/store"
	"digital.vasic.nback/pkg/task"
)

// historyFile is the JSONL history written next to the results.
const historyFile = "history.jsonl"

// runtime holds the collaborators shared by run and serve.
type runtime struct {
	cfg      config.Config
	logger   logging.Logger
	metrics  *metrics.MemoryMetrics
	motion   *motion.Recorder
	store    *store.Store
	reporter report.Reporter
}

func newRuntime(cfg config.Config, console io.Writer) (*runtime, error) {
	logger, err := newLogger(cfg.Logging, cfg.Participant.ID, console)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewMemoryMetrics(),
		motion:  motion.NewRecorder(),
	}

	var fileOpts []report.FileOption
	if cfg.Output.LevelColumn {
		fileOpts = append(fileOpts, report.WithLevelColumn())
	}
	reporters := report.MultiReporter{
		report.NewFileReporter(cfg.Output.Dir, fileOpts...),
		report.NewHistoryReporter(filepath.Join(cfg.Output.Dir, historyFile)),
	}
	if cfg.Output.HTML {
		reporters = append(reporters, report.NewHTMLReporter(cfg.Output.Dir))
	}
	if cfg.Output.Database != "" {
		st, err := store.Open(cfg.Output.Database)
		if err != nil {
			logger.Close()
			return nil, err
		}
		rt.store = st
		reporters = append(reporters, st)
	}
	rt.reporter = reporters
	return rt, nil
}

// newLogger builds the backend named by cfg.Format. Console
// output goes to console.
func newLogger(
	cfg config.LoggingConfig, participant string, console io.Writer,
) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	verbose := level == logging.LevelDebug

	var l logging.Logger
	switch cfg.Format {
	case "json", "both":
		l, err = logging.SetupLogging(cfg.Dir, level)
	case "zap":
		l, err = logging.NewZapLogger(logging.ZapConfig{
			Dir:     cfg.Dir,
			Console: console,
			Level:   level,
		})
	default:
		l = logging.NewConsoleWriterLogger(console, verbose, isTerminal(console))
	}
	if err != nil {
		return nil, fmt.Errorf("create %s logger: %w", cfg.Format, err)
	}
	if cfg.Format == "both" {
		l = logging.NewMultiLogger(l, logging.NewConsoleWriterLogger(console, verbose, isTerminal(console)))
	}
	if cfg.RedactParticipant && participant != "" {
		l = logging.NewRedactingLogger(l, participant)
	}
	return l, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// newOrchestrator wires an orchestrator for order with the
// runtime's collaborators.
func (rt *runtime) newOrchestrator(
	order orchestrator.Order, rng *rand.Rand, extra ...orchestrator.Option,
) (*orchestrator.Orchestrator, error) {
	opts := []orchestrator.Option{
		orchestrator.WithConfig(rt.cfg.SessionConfig()),
		orchestrator.WithLogger(logging.Adapt(rt.logger)),
		orchestrator.WithReporter(rt.reporter),
		orchestrator.WithMetrics(rt.metrics),
		orchestrator.WithMotionRecorder(rt.motion),
		orchestrator.WithParticipant(rt.cfg.Participant.ID),
		orchestrator.WithRand(rng),
		orchestrator.WithObserver(logging.Observer(rt.logger, rt.cfg.Participant.ID)),
	}
	if rt.cfg.Participant.Reshuffle {
		opts = append(opts, orchestrator.WithReshuffle())
	}
	return orchestrator.New(order, append(opts, extra...)...)
}

// writeSummary saves the run summary for the recorded levels.
// Nothing is written when no level was recorded.
func (rt *runtime) writeSummary(records []report.Record) (*report.RunSummary, error) {
	if len(records) == 0 {
		return nil, nil
	}
	summary := report.BuildRunSummary(rt.cfg.Participant.ID, records)
	if err := report.SaveRunSummary(summary, rt.cfg.Output.Dir); err != nil {
		return summary, err
	}
	if rt.cfg.Output.HTML {
		var buf bytes.Buffer
		report.NewHTMLReporter(rt.cfg.Output.Dir).WriteSummary(&buf, summary)
		path := filepath.Join(rt.cfg.Output.Dir, summary.ID+".html")
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return summary, fmt.Errorf("write html summary: %w", err)
		}
	}
	return summary, nil
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	errs = append(errs, rt.logger.Close())
	return errors.Join(errs...)
}

// newRand returns a seeded source, or a random one for seed 0.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// levelsOf converts an order into the dashboard's level list.
func levelsOf(order orchestrator.Order) []task.Level {
	return append([]task.Level(nil), order...)
}
