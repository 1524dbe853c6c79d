package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/magefree/mage-commander/internal/config"
	"github.com/magefree/mage-commander/internal/game"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Setup      string
	Turns      int
	MaxActions int
	Seed       int64
	ReplayDir  string
	Snapshot   string
}

// SimulateResult is the outcome of a simulated game.
type SimulateResult struct {
	Actions    int         `json:"actions"`
	ReplayFile string      `json:"replay_file,omitempty"`
	Summary    GameSummary `json:"summary"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a match from a setup file with every player passing",
		Long: `Play a match described by a YAML setup file. Every player passes priority,
declares no attackers or blockers and sends commanders to the command zone,
so the game advances through whole turns until --turns or the end of the game.

Examples:
  commanderctl simulate --setup pod.yaml --turns 5
  commanderctl simulate --setup pod.yaml --replay-dir ./replays --snapshot final.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Setup, "setup", "", "path to the YAML setup file (required)")
	_ = cmd.MarkFlagRequired("setup")
	cmd.Flags().IntVar(&opts.Turns, "turns", 3, "stop once this many turns have been played")
	cmd.Flags().IntVar(&opts.MaxActions, "max-actions", 10000, "safety limit on submitted actions")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "shuffle seed, overriding the configuration")
	cmd.Flags().StringVar(&opts.ReplayDir, "replay-dir", "", "write a replay file into this directory")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "write the final snapshot to this file")

	return cmd
}

func (o *RootOptions) settings() (game.Settings, error) {
	if o.Config == "" {
		return game.DefaultSettings(), nil
	}
	cfg, err := config.Load(o.Config)
	if err != nil {
		return game.Settings{}, err
	}
	return cfg.Settings(), nil
}

func runSimulate(opts *SimulateOptions, cmd *cobra.Command) error {
	setup, err := game.LoadSetup(opts.Setup)
	if err != nil {
		return err
	}
	settings, err := opts.settings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		settings.ShuffleSeed = opts.Seed
	}

	logger := opts.logger()
	defer logger.Sync()

	g, err := game.New(uuid.NewString(), setup, settings, logger)
	if err != nil {
		return err
	}
	recorder, err := game.NewRecorder(g, logger)
	if err != nil {
		return err
	}
	actions, err := autoplay(recorder, opts.Turns, opts.MaxActions)
	if err != nil {
		return err
	}

	result := SimulateResult{Actions: actions}
	if opts.ReplayDir != "" {
		if err := recorder.Replay().SaveToFile(opts.ReplayDir); err != nil {
			return err
		}
		result.ReplayFile = game.ReplayFilePath(opts.ReplayDir, g.ID())
	}
	snapshot := g.Export()
	if opts.Snapshot != "" {
		data, err := snapshot.SerializeToBytes()
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.Snapshot, data, 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	result.Summary, err = summarize(snapshot)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	out := cmd.OutOrStdout()
	printSummary(out, result.Summary)
	fmt.Fprintf(out, "Actions: %d\n", result.Actions)
	if result.ReplayFile != "" {
		fmt.Fprintf(out, "Replay: %s\n", result.ReplayFile)
	}
	return nil
}

// autoplay answers every decision with the do-nothing choice until the
// game passes the given turn or ends. It returns the number of actions.
func autoplay(recorder *game.Recorder, turns, maxActions int) (int, error) {
	g := recorder.Game()
	for n := 0; n < maxActions; n++ {
		d := g.Decision()
		if d.Kind == game.DecisionGameOver || d.Turn > turns {
			return n, nil
		}
		var action game.Action
		switch d.Kind {
		case game.DecisionPriority:
			action = game.PassPriority(d.Player)
		case game.DecisionDeclareAttackers:
			action = game.DeclareAttackers(d.Player)
		case game.DecisionDeclareBlockers:
			action = game.DeclareBlockers(d.Player)
		case game.DecisionCommanderZone:
			action = game.ChooseCommanderZone(d.Player, d.Card, true)
		default:
			return n, fmt.Errorf("cannot answer %s", d)
		}
		if _, err := recorder.Submit(action); !game.Accepted(err) {
			return n, fmt.Errorf("%s rejected: %w", action.Kind, err)
		}
	}
	return maxActions, fmt.Errorf("stopped after %d actions", maxActions)
}
