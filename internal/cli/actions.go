package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/magefree/mage-commander/internal/actionlog"
	"github.com/magefree/mage-commander/internal/config"
)

// ActionsOptions holds flags for the actions command.
type ActionsOptions struct {
	*RootOptions
	Addr   string
	Queue  string
	GameID string
}

// NewActionsCommand creates the actions command.
func NewActionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List actions queued in the Redis action log",
		Long: `Read the Redis list the server pushes accepted actions to.

Examples:
  commanderctl actions --addr localhost:6379 --game 0c6f...`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "localhost:6379", "Redis address")
	cmd.Flags().StringVar(&opts.Queue, "queue", "commander:actions", "Redis list name")
	cmd.Flags().StringVar(&opts.GameID, "game", "", "only show this game")

	return cmd
}

func runActions(opts *ActionsOptions, cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	log, err := actionlog.Connect(ctx, config.ActionLogConfig{Enabled: true, Addr: opts.Addr, Queue: opts.Queue}, opts.logger())
	if err != nil {
		return err
	}
	defer log.Close()

	records, err := log.Range(ctx, opts.GameID)
	if err != nil {
		return err
	}
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), records)
	}
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No actions found.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(out, "%s  #%-5d %-22s %-12s %s\n",
			time.UnixMilli(rec.Timestamp).UTC().Format(time.RFC3339), rec.ActionIndex, rec.ActionType, rec.Player, rec.GameID)
	}
	return nil
}
