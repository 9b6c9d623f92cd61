package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"digital.vasic.nback/pkg/motion"
)

func motionCmd() *cobra.Command {
	var count bool
	cmd := &cobra.Command{
		Use:   "motion <archive.jsonl.zst>",
		Short: "Print an accelerometer archive in text form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := motion.ReadArchive(args[0])
			if err != nil {
				return err
			}
			if count {
				fmt.Fprintf(cmd.OutOrStdout(), "%d samples\n", len(samples))
				return nil
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), motion.FormatText(samples))
			return err
		},
	}
	cmd.Flags().BoolVar(&count, "count", false, "Only print the number of samples")
	return cmd
}
