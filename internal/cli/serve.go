package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaminalder/tennis-scoreboard/internal/app"
	"github.com/jaminalder/tennis-scoreboard/internal/store"
	"github.com/jaminalder/tennis-scoreboard/internal/web"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr   string
	BestOf int
	// Ready, when set, receives the bound address once the listener is up.
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scoreboard over HTTP",
		Long: `Start the web scoreboard.

Saved matches are loaded from storage on start. Every scoring event is
saved and pushed to open pages over server-sent events.

Example:
  scoreboard serve --addr :8080
  scoreboard serve --store sqlite --store-path ./matches.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().IntVar(&opts.BestOf, "best-of", 0, "default sets per match (overrides best_of)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}
	if opts.BestOf < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--best-of must be positive, got %d", opts.BestOf))
	}
	if opts.BestOf > 0 {
		cfg.BestOf = opts.BestOf
	}

	slog.Info("opening store", "driver", cfg.Storage.Driver, "path", cfg.Storage.Path)
	st, err := cfg.OpenStore()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	svc := app.NewService(app.WithStore(st), app.WithLogger(slog.Default()))
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if err := loadSaved(ctx, svc, st); err != nil {
		return WrapExitError(ExitFailure, "failed to load saved matches", err)
	}

	handler := web.NewServer(svc,
		web.WithNames(cfg.SideNames()),
		web.WithBestOf(cfg.BestOf),
		web.WithLogger(slog.Default()),
	)
	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	addr := ln.Addr().String()
	slog.Info("scoreboard listening", "addr", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Scoreboard listening on http://%s\n", addr)
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	select {
	case err := <-errc:
		return WrapExitError(ExitFailure, "server error", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	// Streaming handlers never go idle; closing their channels ends them.
	srv.RegisterOnShutdown(svc.Disconnect)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
		_ = srv.Close()
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", err)
	}
	slog.Info("scoreboard stopped")
	return nil
}

// loadSaved restores every match in the store into svc.
func loadSaved(ctx context.Context, svc *app.Service, st store.Store) error {
	rows, err := st.History(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := svc.Open(ctx, row.MatchID); err != nil {
			slog.Warn("skipping saved match", "match", row.MatchID, "error", err)
			continue
		}
	}
	slog.Info("saved matches loaded", "count", len(rows))
	return nil
}
