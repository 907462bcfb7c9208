// Command sftprep prepares SFT manifests from generated code solutions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahrav/go-sftprep/internal/cli"
)

func main() {
	inv, err := cli.ParseInvocation(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
	slog.SetDefault(cli.NewLogger(os.Stderr, inv.Log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := cli.Execute(ctx, inv, os.Stdout)
	stop()
	if err != nil {
		slog.Error("sftprep failed", "command", inv.Command, "error", err)
	}
	os.Exit(code)
}
