// Package main is the entry point for the margin trade router.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fd1az/margin-router/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	jsonOutput bool
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "marginrouter",
		Short:         "Leveraged margin trade calculator and venue router",
		Long:          `Previews leveraged margin trades on a lending protocol, picks the best swap venue and builds unsigned trade calls.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newServeCmd(&flags),
		newPreviewCmd(&flags),
		newPositionCmd(&flags),
		newClosePreviewCmd(&flags),
		newPairsCmd(&flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "marginrouter %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}
