package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"digital.vasic.nback/pkg/config"
	"digital.vasic.nback/pkg/orchestrator"
	"digital.vasic.nback/pkg/report"
	"digital.vasic.nback/pkg/sequence"
	"digital.vasic.nback/pkg/store"
	"digital.vasic.nback/pkg/task"
)

func orderCmd(flags *globalFlags) *cobra.Command {
	var (
		index int
		all   bool
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print the level order for a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if all {
				for i, o := range orchestrator.Permutations {
					fmt.Fprintf(out, "%d\t%s\n", i, o)
				}
				return nil
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("index") {
				cfg.Participant.Index = index
				cfg.Participant.Order = ""
			}
			order, err := cfg.LevelOrder(newRand(seed))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, order)
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "Participant index into the permutation table")
	cmd.Flags().BoolVar(&all, "all", false, "List every permutation")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for a random order (0 = random)")
	return cmd
}

func generateCmd(flags *globalFlags) *cobra.Command {
	var (
		level int
		seed  uint64
		count int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print generated digit sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if !task.Level(level).Valid() {
				return fmt.Errorf("%w: %d (want 1-3)", sequence.ErrInvalidLevel, level)
			}
			params := cfg.SessionConfig().Params()
			gen := sequence.NewGenerator(newRand(0), params)
			if seed != 0 {
				gen = sequence.NewSeeded(seed, params)
			}
			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				seq, err := gen.Generate(level)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%d digits\t%s\n", task.Level(level), seq.Len(), joinInts(seq.Digits()))
				fmt.Fprintf(out, "matches\t%d\t%s\n", len(seq.MatchPositions()), joinInts(seq.MatchPositions()))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&level, "level", "n", 1, "n-back level (1-3)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 = random)")
	cmd.Flags().IntVar(&count, "count", 1, "Number of sequences")
	return cmd
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

func historyCmd(flags *globalFlags) *cobra.Command {
	var (
		participant string
		level       int
		limit       int
		stats       bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if cfg.Output.Database == "" {
				if stats {
					return fmt.Errorf("--stats needs a database (output.database)")
				}
				entries, err := report.ReadHistory(filepath.Join(cfg.Output.Dir, historyFile))
				if err != nil {
					return err
				}
				return writeHistoryLog(w, entries, participant, task.Level(level), limit)
			}

			st, err := store.Open(cfg.Output.Database)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := cmd.Context()

			if stats {
				rows, err := st.Stats(ctx, participant)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "LEVEL\tSESSIONS\tACCURACY\tRATING")
				for _, s := range rows {
					rating := "-"
					if s.MeanRating != nil {
						rating = fmt.Sprintf("%.1f", *s.MeanRating)
					}
					fmt.Fprintf(w, "%s\t%d\t%.2f%%\t%s\n", s.Level, s.Sessions, s.MeanAccuracy, rating)
				}
				return nil
			}

			rows, err := st.ListSessions(ctx, store.Filter{
				Participant: participant,
				Level:       task.Level(level),
				Limit:       limit,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "RECORDED\tPARTICIPANT\tLEVEL\tMATCHES\tFALSE ALARMS\tACCURACY\tRATING\tSESSION")
			for _, r := range rows {
				rating := "-"
				if r.Rating != nil {
					rating = strconv.Itoa(*r.Rating)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%.2f%%\t%s\t%s\n",
					r.RecordedAt.Local().Format(time.DateTime), r.Participant, r.Level,
					r.MatchCount, r.RequiredMatches, r.FalseAlarms,
					r.AccuracyPercent, rating, r.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&participant, "participant", "p", "", "Filter by participant")
	cmd.Flags().IntVarP(&level, "level", "n", 0, "Filter by level")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows (0 = all)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show per-level aggregates")
	cmd.AddCommand(historyShowCmd(flags), historyDeleteCmd(flags))
	return cmd
}

// writeHistoryLog lists the JSONL history newest first, for setups
// without a database.
func writeHistoryLog(
	w io.Writer, entries []report.HistoricalEntry,
	participant string, level task.Level, limit int,
) error {
	fmt.Fprintln(w, "RECORDED\tPARTICIPANT\tLEVEL\tMATCHES\tFALSE ALARMS\tACCURACY\tRATING\tSESSION")
	shown := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if participant != "" && e.Participant != participant {
			continue
		}
		if level != 0 && task.Level(e.Level) != level {
			continue
		}
		if limit > 0 && shown == limit {
			break
		}
		rating := "-"
		if e.Rating != nil {
			rating = strconv.Itoa(*e.Rating)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f%%\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Participant, task.Level(e.Level),
			e.MatchCount, e.FalseAlarms, e.AccuracyPercent, rating, e.SessionID)
		shown++
	}
	return nil
}

func historyShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored session with its trials as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(flags)
			if err != nil {
				return err
			}
			defer st.Close()
			rec, err := st.Record(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report.NewJSONReporter(cmd.OutOrStdout(), true).Report(cmd.Context(), rec)
		},
	}
}

func historyDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a stored session and its trials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(flags)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func openStore(flags *globalFlags) (*store.Store, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if cfg.Output.Database == "" {
		return nil, fmt.Errorf("no database configured (output.database)")
	}
	return store.Open(cfg.Output.Database)
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init <path>",
			Short: "Write the default configuration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.Save(args[0], config.Default()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(flags)
				if err != nil {
					return err
				}
				return config.Encode(cmd.OutOrStdout(), cfg)
			},
		},
	)
	return cmd
}
