package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dougsko/audioroute/pkg/client"
	"github.com/dougsko/audioroute/pkg/routing"
)

// NewOutputsCmd creates the outputs command
func NewOutputsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outputs",
		Short: "List attached audio outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputs, err := newClient().GetOutputs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, outputs)
			}

			fmt.Fprintf(out, "adapter:  %s\n", outputs.Adapter)
			fmt.Fprintf(out, "external: %t\n", outputs.HasExternalOutput)
			if len(outputs.Devices) == 0 {
				fmt.Fprintln(out, "devices:  none")
				return nil
			}
			fmt.Fprintf(out, "devices:  %s\n", strings.Join(routing.DeviceNames(outputs.Devices), ", "))
			return nil
		},
	}
}

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	var (
		filter client.HistoryFilter
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently handled routing commands",
		Long: `Show routing commands handled by routed, newest first.

Examples:
  routectl history -n 50
  routectl history --command forceAudioToSpeaker --failed
  routectl history --since 2h
  routectl history show <request-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.Limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", filter.Limit)
			}
			if filter.Offset < 0 {
				return fmt.Errorf("--offset must not be negative, got %d", filter.Offset)
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			records, err := newClient().QueryHistory(filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, records)
			}

			if len(records) == 0 {
				fmt.Fprintln(out, "No commands recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tCOMMAND\tRESULT\tDURATION\tERROR")
			for _, r := range records {
				outcome := fmt.Sprintf("%t", r.Result)
				errText := ""
				if !r.Success {
					outcome = "failed"
					errText = r.ErrorCode
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n",
					r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Command, outcome, r.DurationMs, errText)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Number of records to show")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Skip this many of the newest records")
	cmd.Flags().StringVarP(&filter.Command, "command", "c", "", "Only show this command")
	cmd.Flags().BoolVar(&filter.FailuresOnly, "failed", false, "Only show failed commands")
	cmd.Flags().DurationVar(&since, "since", 0, "Only show commands newer than this (e.g. 30m, 2h)")

	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <request-id>",
		Short: "Show one handled command in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := newClient().GetRecord(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, record)
			}

			fmt.Fprintf(out, "id:       %s\n", record.ID)
			fmt.Fprintf(out, "time:     %s\n", record.Timestamp.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "command:  %s\n", record.Command)
			if record.Success {
				fmt.Fprintf(out, "result:   %t\n", record.Result)
			} else {
				fmt.Fprintf(out, "error:    %s: %s\n", record.ErrorCode, record.ErrorMessage)
			}
			fmt.Fprintf(out, "external: %t\n", record.HasExternalOutput)
			if len(record.Devices) > 0 {
				fmt.Fprintf(out, "devices:  %s\n", strings.Join(record.Devices, ", "))
			}
			fmt.Fprintf(out, "duration: %dms\n", record.DurationMs)
			return nil
		},
	}
}

// NewPingCmd creates the ping command
func NewPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that routed is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if err := c.Ping(); err != nil {
				return fmt.Errorf("routed not reachable at %s: %w", c.SocketPath(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pong")
			return nil
		},
	}
}
