// Command xpp is the CLI entry point for the X++ toolchain.
//
// Usage:
//
//	xpp run <file> [--watch]         Run a source file
//	xpp repl                         Start interactive mode
//	xpp sandbox [code] [--file f]    Run a snippet in the sandbox
//	xpp tokens <file> [--json]       Print tokens
//	xpp parse <file> [--expr]        Print the syntax tree as JSON
//	xpp bridge [--host h --port p]   Serve the TCP JSON bridge
//	xpp config show                  Print the effective configuration
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"xpp/internal/cli"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
