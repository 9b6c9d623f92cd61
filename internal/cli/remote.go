package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"digital.vasic.nback/pkg/monitor"
)

func remoteCmd(flags *globalFlags) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "remote <state|dashboard|start|respond|cancel|advance [rating]|restart|exit>",
		Short: "Control a running serve instance over HTTP",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				cfg, err := loadConfig(flags)
				if err != nil {
					return err
				}
				addr = cfg.Monitor.Addr
			}
			client := monitor.NewClient(addr, monitor.WithTimeout(timeout))
			ctx := cmd.Context()

			var (
				out any
				err error
			)
			switch args[0] {
			case "state":
				out, err = client.State(ctx)
			case "dashboard":
				out, err = client.Dashboard(ctx)
			default:
				c := monitor.Command{Type: monitor.CommandType(args[0])}
				if len(args) == 2 {
					rating, perr := strconv.Atoi(args[1])
					if perr != nil {
						return fmt.Errorf("rating %q: %w", args[1], perr)
					}
					c.Rating = &rating
				}
				out, err = client.Send(ctx, c)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Monitor address (defaults to monitor.addr)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	return cmd
}
