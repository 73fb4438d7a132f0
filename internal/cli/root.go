// Package cli implements the xpp command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"xpp/internal/config"
	"xpp/pkg/logger"
)

// errReported marks a failure whose details were already printed.
var errReported = errors.New("failed")

type contextKey struct{}

// App carries what PersistentPreRunE prepared for a command.
type App struct {
	Config     *config.Config
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// Logger returns the global logger tagged with component.
func (a *App) Logger(component string) zerolog.Logger {
	return logger.Component(component)
}

// appFrom returns the App stored by the root command, or one with default settings.
func appFrom(cmd *cobra.Command) *App {
	if ctx := cmd.Context(); ctx != nil {
		if app, ok := ctx.Value(contextKey{}).(*App); ok {
			return app
		}
	}
	cfg, err := config.Load("")
	if err != nil {
		cfg = &config.Config{}
	}
	return &App{Config: cfg}
}

// NewRootCmd builds the xpp command tree.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		quiet      bool
	)

	root := &cobra.Command{
		Use:   "xpp",
		Short: "X++ line interpreter and sandbox",
		Long: `xpp runs X++ programs: a line-oriented language with Python-style
expressions and brace-delimited if/elif/else blocks. It also runs untrusted
snippets in a time-limited sandbox and serves both over a TCP JSON bridge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			path := configPath
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			level := cfg.Log.Level
			switch {
			case quiet:
				level = "error"
			case verbose:
				level = "debug"
			}
			if err := logger.InitWriter(logger.LogConfig{
				Level:  level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}, cmd.ErrOrStderr()); err != nil {
				return err
			}

			app := &App{Config: cfg, ConfigPath: path, Verbose: verbose, Quiet: quiet}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, contextKey{}, app))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Close()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.xpp/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	root.AddCommand(
		newRunCmd(),
		newReplCmd(),
		newSandboxCmd(),
		newTokensCmd(),
		newParseCmd(),
		newBridgeCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}
