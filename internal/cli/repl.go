package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"xpp/internal/runtime"
)

const continuationPrompt = "... "

// lineReader is the part of *readline.Instance the REPL loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start interactive mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			history := app.Config.REPL.HistoryFile
			if history != "" {
				if err := os.MkdirAll(filepath.Dir(history), 0700); err != nil {
					history = ""
				}
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:            colorGreen + app.Config.REPL.Prompt + colorReset,
				HistoryFile:       history,
				InterruptPrompt:   "^C",
				EOFPrompt:         "exit",
				HistorySearchFold: true,
				Stdin:             readline.NewCancelableStdin(cmd.InOrStdin()),
				Stdout:            cmd.OutOrStdout(),
				Stderr:            cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("readline init failed: %w", err)
			}
			defer rl.Close()

			fmt.Fprintf(rl.Stdout(), "%s%s%s%s\n\n", colorBold, colorCyan, runtime.Banner, colorReset)
			return replLoop(rl, rl.Stdout(), rl.Stderr(), app.Config.REPL.Prompt)
		},
	}
}

// replLoop feeds lines from r to a Session until exit or EOF. input() reads from r too.
// Ctrl-C discards an open block; outside a block it only prints a hint.
func replLoop(r lineReader, out, errOut io.Writer, prompt string) error {
	in := &promptReader{r: r}
	session := runtime.NewSession(runtime.NewInterpreter(in, out))

	for {
		if session.Pending() {
			r.SetPrompt(colorGray + continuationPrompt + colorReset)
		} else {
			r.SetPrompt(colorGreen + prompt + colorReset)
		}

		line, err := r.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if session.Pending() {
				session.Reset()
				continue
			}
			fmt.Fprintf(out, "%s(use 'exit' or Ctrl+D to quit)%s\n", colorGray, colorReset)
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		exit, err := session.Feed(line)
		if exit {
			return nil
		}
		if err != nil {
			fmt.Fprintf(errOut, "%serror: %s%s\n", colorRed, err, colorReset)
		}
	}
}

// promptReader serves input() from the line editor, one line per Read.
type promptReader struct {
	r       lineReader
	pending []byte
}

func (p *promptReader) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		p.r.SetPrompt("")
		line, err := p.r.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				return 0, io.EOF
			}
			return 0, err
		}
		p.pending = append([]byte(line), '\n')
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}
