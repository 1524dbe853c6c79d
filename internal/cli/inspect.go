package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magefree/mage-commander/internal/game"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Checksum string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Validate a snapshot file and print its summary",
		Long: `Load a snapshot written by the server or by "simulate --snapshot", rebuild the
game from it to check its zones and references, and print a summary.

Examples:
  commanderctl inspect final.json
  commanderctl inspect final.json --checksum 3f9a...`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Checksum, "checksum", "", "fail unless the snapshot has this checksum")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	data, err := game.DeserializeFromBytes(raw)
	if err != nil {
		return err
	}
	if opts.Checksum != "" {
		ok, err := data.VerifyChecksum(&game.SerializationChecksum{Hash: opts.Checksum, Version: data.Version})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("checksum mismatch for %s", path)
		}
	}
	if _, err := game.Import(data, opts.logger()); err != nil {
		return fmt.Errorf("snapshot is inconsistent: %w", err)
	}

	summary, err := summarize(data)
	if err != nil {
		return err
	}
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), summary)
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}
