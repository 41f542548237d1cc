package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaminalder/tennis-scoreboard/internal/domain"
	"github.com/jaminalder/tennis-scoreboard/internal/store"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved matches, newest first",
		Args:  cobra.NoArgs,
		Example: `  scoreboard history
  scoreboard history --limit 5 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n matches (0 for all)")
	return cmd
}

func runHistory(opts *RootOptions, cmd *cobra.Command, limit int) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := cfg.OpenStore()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	rows, err := st.History(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read history", err)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return opts.formatter(cmd).Success(rows, historyText(rows, cfg.SideNames(), storageInfo(cfg.Storage.Driver, cfg.Storage.Path)))
}

// storageInfo describes where matches are kept.
func storageInfo(driver, path string) string {
	if driver == store.DriverMemory {
		return "memory storage"
	}
	return fmt.Sprintf("%s storage at %s", driver, path)
}

// historyText renders rows as a table followed by a storage footer.
func historyText(rows []store.Summary, names domain.Names, storage string) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No saved matches in %s.\n", storage)
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCH\tSAVED\tSETS\tRESULT")
	for _, r := range rows {
		result := "in progress"
		if r.Complete {
			result = names.Of(r.Winner) + " won"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d - %d\t%s\n",
			r.MatchID, r.SavedAt.Local().Format(time.DateTime), r.Sets[domain.Home], r.Sets[domain.Away], result)
	}
	_ = tw.Flush()
	noun := "matches"
	if len(rows) == 1 {
		noun = "match"
	}
	fmt.Fprintf(&b, "\n%d %s in %s\n", len(rows), noun, storage)
	return b.String()
}
