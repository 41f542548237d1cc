package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jaminalder/tennis-scoreboard/internal/app"
	"github.com/jaminalder/tennis-scoreboard/internal/input"
	"github.com/jaminalder/tennis-scoreboard/internal/render"
	"github.com/jaminalder/tennis-scoreboard/internal/store"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	MatchID string
	New     bool
	BestOf  int
	Clear   bool
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Keep score from the keyboard",
		Long: `Read key presses from stdin and score the match.

The most recently saved match is resumed unless --new or --match is given.
Arrow keys score (up: home, down: away), left swaps the server and right
resets the match. q quits.

Example:
  scoreboard play
  scoreboard play --new --best-of 5
  scoreboard play --match 0190c3a4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MatchID, "match", "", "resume the saved match with this id")
	cmd.Flags().BoolVar(&opts.New, "new", false, "start a new match instead of resuming")
	cmd.Flags().IntVar(&opts.BestOf, "best-of", 0, "sets in a new match (overrides best_of)")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "clear the terminal before each redraw")
	cmd.MarkFlagsMutuallyExclusive("match", "new")

	return cmd
}

func runPlay(opts *PlayOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.BestOf < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--best-of must be positive, got %d", opts.BestOf))
	}
	if opts.BestOf > 0 {
		cfg.BestOf = opts.BestOf
	}
	bindings, err := input.DefaultBindings().Merge(cfg.Bindings)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid key bindings", err)
	}
	st, err := cfg.OpenStore()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}

	out := opts.formatter(cmd)
	names := cfg.SideNames()
	svcOpts := []app.Option{app.WithStore(st), app.WithLogger(slog.Default())}
	var console *render.Console
	if opts.Format == "text" {
		console = render.NewConsole(cmd.OutOrStdout(), names)
		console.Clear = opts.Clear
		svcOpts = append(svcOpts, app.WithListener(console))
	}
	svc := app.NewService(svcOpts...)
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	v, created, err := startMatch(ctx, opts, svc, cfg.BestOf)
	if err != nil {
		return err
	}
	out.VerboseLog("playing match %s", v.ID)
	if console != nil {
		// Resumed matches were already drawn when their state was loaded.
		if created {
			_ = console.Update(v.State)
		}
		fmt.Fprint(cmd.OutOrStdout(), render.Help())
	}

	id := v.ID
	err = input.Run(ctx, cmd.InOrStdin(), bindings, func(ev app.Event) error {
		_, err := svc.Apply(ctx, id, ev)
		if err != nil && !errors.Is(err, app.ErrNotFound) && !errors.Is(err, app.ErrUnknownEvent) {
			// The score moved on; only the save failed.
			slog.Warn("event not saved", "event", ev, "error", err)
			return nil
		}
		return err
	})
	if err != nil {
		return WrapExitError(ExitFailure, "input stopped", err)
	}

	final, _ := svc.Get(id)
	return out.Success(matchResult(*final, names), fmt.Sprintf("Match %s saved.\n", id))
}

// startMatch picks the match to score: an explicit id, a new match, or the
// latest saved one, falling back to a new match when nothing is saved.
func startMatch(ctx context.Context, opts *PlayOptions, svc *app.Service, bestOf int) (*app.MatchView, bool, error) {
	switch {
	case opts.MatchID != "":
		v, err := svc.Open(ctx, opts.MatchID)
		if err != nil {
			return nil, false, WrapExitError(ExitCommandError, "failed to open match", err)
		}
		return v, false, nil
	case !opts.New:
		v, err := svc.Resume(ctx)
		if err == nil {
			return v, false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, false, WrapExitError(ExitFailure, "failed to resume", err)
		}
	}
	v, err := svc.CreateMatch(ctx, bestOf)
	if v == nil {
		return nil, false, WrapExitError(ExitFailure, "failed to create match", err)
	}
	if err != nil {
		slog.Warn("new match not saved", "match", v.ID, "error", err)
	}
	return v, true, nil
}
