// Package main provides the entry point for the statweave CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/statweave/statweave/cmd/statweave/commands"
	"github.com/statweave/statweave/internal/version"
)

// Exit codes. A produced report with failed modules is distinguishable from
// a run that produced nothing.
const (
	exitOK             = 0
	exitFatal          = 1
	exitModuleFailures = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "statweave",
		Short: "Aggregate analysis tool logs into a single report",
		Long: `statweave discovers tool output logs across a directory tree, runs
extraction modules over them, and weaves the per-sample results into one
report plus an optional machine-readable data export.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewModulesCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if errors.Is(err, commands.ErrModuleFailures) {
		return exitModuleFailures
	}

	return exitFatal
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "statweave %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
