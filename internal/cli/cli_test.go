package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpp/internal/sandbox"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// execCLI runs xpp with a config path that does not exist, so only defaults and env apply.
func execCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"-c", filepath.Join(t.TempDir(), "none.yaml")}, args...)
	code := Execute(context.Background(), full, strings.NewReader(stdin), &out, &errOut)
	return cliResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunCommand(t *testing.T) {
	path := writeFile(t, "main.xpp", "name = input()\nif name == \"bob\" {\nprint(\"hi bob\")\n} else {\nprint(\"who?\")\n}\n")
	res := execCLI(t, "bob\n", "run", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "hi bob\n", res.stdout)
}

func TestRunCommandError(t *testing.T) {
	path := writeFile(t, "bad.xpp", "print(1)\nthis is not valid\n")
	res := execCLI(t, "", "run", path)
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "1\n", res.stdout)
	assert.Contains(t, res.stderr, "invalid statement")
}

func TestRunCommandMissingFile(t *testing.T) {
	res := execCLI(t, "", "run", filepath.Join(t.TempDir(), "missing.xpp"))
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "cannot read file")
}

func TestSandboxCommand(t *testing.T) {
	res := execCLI(t, "", "sandbox", "print('hi')")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "hi\n"+sandbox.StatusSuccess+"\n", res.stdout)
}

func TestSandboxCommandTimeout(t *testing.T) {
	res := execCLI(t, "", "sandbox", "--time-limit", "200ms", "while True: pass")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, sandbox.StatusTimeout)
}

func TestSandboxCommandBlocked(t *testing.T) {
	res := execCLI(t, "", "sandbox", "open('x')")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, sandbox.StatusErrorPrefix)
	assert.Contains(t, res.stdout, "open")
}

func TestSandboxCommandJSAndStdin(t *testing.T) {
	res := execCLI(t, "print(1 + 1)", "sandbox", "--engine", "js")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "2\n"+sandbox.StatusSuccess+"\n", res.stdout)
}

func TestSandboxCommandFile(t *testing.T) {
	path := writeFile(t, "snippet.py", "for i in range(3): print(i)\n")
	res := execCLI(t, "", "sandbox", "--file", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "0\n1\n2\n"+sandbox.StatusSuccess+"\n", res.stdout)
}

func TestTokensCommand(t *testing.T) {
	path := writeFile(t, "t.xpp", "x = 1 + 2")

	res := execCLI(t, "", "tokens", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "IDENT")

	res = execCLI(t, "", "tokens", "--json", path)
	require.Equal(t, 0, res.code, res.stderr)
	var out struct {
		Tokens      []tokenJSON      `json:"tokens"`
		Diagnostics []map[string]any `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	require.NotEmpty(t, out.Tokens)
	assert.Equal(t, "x", out.Tokens[0].Lexeme)
	assert.Empty(t, out.Diagnostics)
}

func TestParseCommand(t *testing.T) {
	path := writeFile(t, "p.xpp", "x = 1\nwhile x < 3: x += 1")
	res := execCLI(t, "", "parse", path)
	require.Equal(t, 0, res.code, res.stderr)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	tree := out["ast"].(map[string]any)
	assert.Equal(t, "Program", tree["kind"])
}

func TestParseCommandDiagnostics(t *testing.T) {
	path := writeFile(t, "p.xpp", "x = (1 +")
	res := execCLI(t, "", "parse", path)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "diagnostics")
}

func TestConfigShow(t *testing.T) {
	t.Setenv("XPP_SANDBOX_ENGINE", "js")
	res := execCLI(t, "", "config", "show")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "time_limit: 3s")
	assert.Contains(t, res.stdout, "engine: js")
	assert.Contains(t, res.stdout, "port: 50505")
}

func TestVersionCommand(t *testing.T) {
	res := execCLI(t, "", "version")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "xpp "+BuildVersion)
}

func TestUnknownCommand(t *testing.T) {
	res := execCLI(t, "", "frobnicate")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown command")
}

// ---- repl ----

type scriptedLine struct {
	text string
	err  error
}

type fakeReader struct {
	lines   []scriptedLine
	prompts []string
}

func (f *fakeReader) Readline() (string, error) {
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	next := f.lines[0]
	f.lines = f.lines[1:]
	return next.text, next.err
}

func (f *fakeReader) SetPrompt(p string) { f.prompts = append(f.prompts, p) }

func lines(texts ...string) []scriptedLine {
	out := make([]scriptedLine, len(texts))
	for i, s := range texts {
		out[i] = scriptedLine{text: s}
	}
	return out
}

func TestReplLoopBlocksAndInput(t *testing.T) {
	r := &fakeReader{lines: lines(
		"x = 2",
		"if x > 1 {",
		`print("big")`,
		"} else {",
		`print("small")`,
		"}",
		"y = input()",
		"hello",
		"print(y)",
		"exit",
	)}
	var out, errOut bytes.Buffer
	require.NoError(t, replLoop(r, &out, &errOut, ">>> "))

	assert.Equal(t, "big\nhello\n", out.String())
	assert.Empty(t, errOut.String())
	assert.Contains(t, r.prompts, colorGray+continuationPrompt+colorReset)
}

func TestReplLoopInterruptCancelsBlock(t *testing.T) {
	r := &fakeReader{lines: []scriptedLine{
		{text: "if True {"},
		{err: readline.ErrInterrupt},
		{text: "print(1)"},
	}}
	var out, errOut bytes.Buffer
	require.NoError(t, replLoop(r, &out, &errOut, ">>> "))
	assert.Equal(t, "1\n\n", out.String())
}

func TestReplLoopReportsErrors(t *testing.T) {
	r := &fakeReader{lines: lines("nonsense here", "print(2)", "EXIT")}
	var out, errOut bytes.Buffer
	require.NoError(t, replLoop(r, &out, &errOut, ">>> "))
	assert.Equal(t, "2\n", out.String())
	assert.Contains(t, errOut.String(), "invalid statement")
}
