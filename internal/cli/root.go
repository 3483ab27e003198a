// Package cli implements storectl, the operator command line for the
// storefront backend.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"storefront-backend/internal/app"
	"storefront-backend/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Open builds the services a command runs against. The returned func
	// releases the store.
	Open func(ctx context.Context, logger *slog.Logger) (*app.App, func(), error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates storectl wired to the configured store.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{Open: openApp})
}

func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate the storefront backend",
		Long:          "Operator tooling for the game storefront: reconcile purchases, moderate games, manage roles and read sales.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewGamesCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewLibraryCommand(opts))
	cmd.AddCommand(NewSalesCommand(opts))
	cmd.AddCommand(NewDiagnosticsCommand(opts))

	return cmd
}

// withApp opens the services, runs fn and releases the store.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a, release, err := opts.Open(ctx, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer release()

	return fn(ctx, a, NewOutputFormatter(opts.Format, cmd.OutOrStdout()))
}

func openApp(ctx context.Context, logger *slog.Logger) (*app.App, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	store, err := app.OpenStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	return app.New(cfg, store, logger), func() { store.Close() }, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Execute runs storectl and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
