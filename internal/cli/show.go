package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaminalder/tennis-scoreboard/internal/app"
	"github.com/jaminalder/tennis-scoreboard/internal/domain"
	"github.com/jaminalder/tennis-scoreboard/internal/render"
	"github.com/jaminalder/tennis-scoreboard/internal/store"
)

// MatchResult is the JSON form of one match.
type MatchResult struct {
	MatchID string            `json:"match_id"`
	SavedAt time.Time         `json:"timestamp"`
	State   domain.MatchState `json:"data"`
	Display domain.Display    `json:"display"`
}

func matchResult(v app.MatchView, names domain.Names) MatchResult {
	return MatchResult{
		MatchID: v.ID,
		SavedAt: v.Updated,
		State:   v.State,
		Display: domain.Describe(v.State, names),
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [match-id]",
		Short: "Print a saved match",
		Long: `Print the scoreboard of a saved match, or of the latest one when no id
is given.

Example:
  scoreboard show
  scoreboard show 0190c3a4-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return runShow(rootOpts, cmd, id)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, cmd *cobra.Command, id string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := cfg.OpenStore()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	var rec store.Record
	if id == "" {
		rec, err = st.Latest(cmd.Context())
	} else {
		rec, err = st.Load(cmd.Context(), id)
	}
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID):
		return WrapExitError(ExitCommandError, "no saved match", err)
	case err != nil:
		return WrapExitError(ExitFailure, "failed to read match", err)
	}

	names := cfg.SideNames()
	v := app.MatchView{ID: rec.MatchID, State: rec.State, Created: rec.SavedAt, Updated: rec.SavedAt}
	text := fmt.Sprintf("Match %s (saved %s)\n\n%s", rec.MatchID, rec.SavedAt.Format(time.DateTime), render.Text(rec.State, names))
	return opts.formatter(cmd).Success(matchResult(v, names), text)
}
