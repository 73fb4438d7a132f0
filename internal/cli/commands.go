package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"xpp/internal/ast"
	"xpp/internal/bridge"
	"xpp/internal/diag"
	"xpp/internal/lexer"
	"xpp/internal/parser"
	"xpp/internal/runtime"
	"xpp/internal/sandbox"
	"xpp/internal/watch"
)

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read file %s: %w", path, err)
	}
	return string(data), nil
}

func sourceLines(source string) []string {
	return strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
}

// ---- run ----

func newRunCmd() *cobra.Command {
	var watchFile bool

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run an X++ source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !watchFile {
				return runFile(cmd, path)
			}

			app := appFrom(cmd)
			return watch.Run(cmd.Context(), path, func() {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s--- %s ---%s\n", colorGray, path, colorReset)
				_ = runFile(cmd, path)
			}, watch.WithLogger(app.Logger("watch")))
		},
	}
	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "re-run whenever the file changes")
	return cmd
}

// runFile executes path on a fresh interpreter. Errors are printed and reported as errReported.
func runFile(cmd *cobra.Command, path string) error {
	source, err := readSource(path)
	if err != nil {
		return err
	}
	interp := runtime.NewInterpreter(cmd.InOrStdin(), cmd.OutOrStdout())
	if err := interp.RunBlock(sourceLines(source)); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return errReported
	}
	return nil
}

// ---- sandbox ----

func sandboxConfig(app *App) sandbox.Config {
	c := app.Config.Sandbox
	return sandbox.Config{
		TimeLimit:      c.TimeLimit,
		Engine:         c.Engine,
		PersistGlobals: c.PersistGlobals,
		MaxOutput:      c.MaxOutput,
	}
}

func newSandboxCmd() *cobra.Command {
	var (
		file      string
		timeLimit time.Duration
		engine    string
	)

	cmd := &cobra.Command{
		Use:   "sandbox [code]",
		Short: "Run a snippet in the time-limited sandbox",
		Long: `Run a snippet against the sandbox allow-list under a wall-clock limit.
The snippet comes from the argument, --file, or stdin when neither is given.
The last line printed is the sandbox status.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			switch {
			case len(args) == 1:
				code = args[0]
			case file != "":
				src, err := readSource(file)
				if err != nil {
					return err
				}
				code = src
			default:
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				code = string(data)
			}

			app := appFrom(cmd)
			cfg := sandboxConfig(app)
			if cmd.Flags().Changed("time-limit") {
				cfg.TimeLimit = timeLimit
			}
			if cmd.Flags().Changed("engine") {
				cfg.Engine = engine
			}

			sb := sandbox.New(cfg, cmd.OutOrStdout(), app.Logger("sandbox"))
			res := sb.Run(cmd.Context(), code)
			fmt.Fprintln(cmd.OutOrStdout(), res.Status())
			var listErr *diag.ListError
			if errors.As(res.Err, &listErr) && len(listErr.Diags) > 1 {
				fmt.Fprintln(cmd.ErrOrStderr(), listErr.Detail())
			}
			if res.TimedOut || res.Err != nil {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the snippet from a file")
	cmd.Flags().DurationVarP(&timeLimit, "time-limit", "t", 3*time.Second, "wall-clock limit")
	cmd.Flags().StringVarP(&engine, "engine", "e", sandbox.EngineScript, "snippet language: script or js")
	return cmd
}

// ---- tokens ----

func newTokensCmd() *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "Print the tokens of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0])
			if err != nil {
				return err
			}
			tokens, diags := lexer.New(source, args[0]).Tokenize()

			if jsonMode {
				if err := printTokensJSON(cmd.OutOrStdout(), tokens, diags); err != nil {
					return err
				}
			} else {
				printTokensText(cmd.OutOrStdout(), tokens)
				printDiagsText(cmd.ErrOrStderr(), diags)
			}
			if len(diags) > 0 {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print tokens as JSON")
	return cmd
}

// ---- parse ----

func newParseCmd() *cobra.Command {
	var exprMode bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Print the syntax tree of a sandbox program (or one expression) as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0])
			if err != nil {
				return err
			}
			tokens, diags := lexer.New(source, args[0]).Tokenize()

			p := parser.New(tokens)
			var node ast.Node
			if exprMode {
				expr, parseDiags := p.ParseExpression()
				diags = append(diags, parseDiags...)
				node = expr
			} else {
				prog, parseDiags := p.ParseProgram()
				diags = append(diags, parseDiags...)
				node = prog
			}

			output := map[string]interface{}{
				"diagnostics": diagsToSlice(diags),
			}
			if node != nil {
				output["ast"] = ast.NodeToMap(node)
			}
			if err := printJSON(cmd.OutOrStdout(), output); err != nil {
				return err
			}
			if len(diags) > 0 {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&exprMode, "expr", false, "parse the file as a single expression")
	return cmd
}

// ---- bridge ----

func newBridgeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Serve run/eval/sandbox requests over TCP JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			if !cmd.Flags().Changed("host") {
				host = app.Config.Bridge.Host
			}
			if !cmd.Flags().Changed("port") {
				port = app.Config.Bridge.Port
			}

			sbCfg := sandboxConfig(app)
			log := app.Logger("bridge")
			srv := bridge.NewServer(host, port, sandbox.New(sbCfg, nil, app.Logger("sandbox")), log)

			fmt.Fprintf(cmd.OutOrStdout(), "%sxpp bridge listening on %s%s\n", colorCyan, srv.Addr(), colorReset)
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", bridge.DefaultHost, "listen host")
	cmd.Flags().IntVarP(&port, "port", "p", bridge.DefaultPort, "listen port")
	return cmd
}

// ---- config ----

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			data, err := app.Config.YAML()
			if err != nil {
				return err
			}
			if app.ConfigPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", app.ConfigPath)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}

// ---- version ----

// Build information, set with -ldflags at release time.
var (
	BuildVersion = "dev"
	GitCommit    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "xpp %s (X++ v%s)\n", BuildVersion, runtime.Version)
			fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(w, "  Go version: %s\n", goruntime.Version())
			fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", goruntime.GOOS, goruntime.GOARCH)
		},
	}
}
