package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-account"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// NewRootCmd creates the root command. Running it without a subcommand
// serves the HTTP API.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "accountd",
		Short:         "User accounts and bearer token service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := account.LoadOptions(configFile, cmd.Flags())
			if err != nil {
				cmd.PrintErrln(err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, opts, newLogger(cmd.ErrOrStderr(), opts))
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	account.RegisterFlags(cmd.Flags())

	cmd.AddCommand(NewMigrateCmd(&configFile))

	return cmd
}

// NewMigrateCmd applies pending migrations and exits
func NewMigrateCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the store migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := account.LoadOptions(*configFile, cmd.Flags())
			if err != nil {
				cmd.PrintErrln(err)
				return err
			}

			store, err := openStore(cmd.Context(), opts, newLogger(cmd.ErrOrStderr(), opts))
			if err != nil {
				cmd.PrintErrln(err)
				return err
			}
			defer store.Close()

			for _, name := range store.Applied() {
				cmd.Printf("applied %s\n", name)
			}
			cmd.Println("migrations applied")
			return nil
		},
	}

	account.RegisterFlags(cmd.Flags())

	return cmd
}

func serve(ctx context.Context, opts *account.Options, logger *slog.Logger) error {
	srv, err := newServer(ctx, opts, logger)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "address", opts.HTTPAddress, "prefix", opts.APIPrefix)
		errc <- srv.http.Serve(opts.HTTPAddress)
	}()

	select {
	case err := <-errc:
		_ = srv.Close(context.Background())
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Close(shutdownCtx)
}

func newLogger(w io.Writer, opts *account.Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

func storeTimeout(opts *account.Options) time.Duration {
	return time.Duration(opts.StoreTimeout) * time.Millisecond
}
