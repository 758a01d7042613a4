// Command cbdcsim runs the CBDC banking-sector simulation: headless batch
// runs with optional SQLite recording, a live HTTP observation server, and
// replay of recorded runs.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cbdcsim",
		Short: "Agent-based CBDC adoption and banking disintermediation simulation",
		Long: `cbdcsim simulates the introduction of a central bank digital currency
into a two-tier banking system: consumers adopt and rebalance toward CBDC,
commercial banks compete on deposit rates and lose intermediation
centrality, and the central bank monitors stability and adjusts policy.

Runs are deterministic for a given seed and configuration.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config (defaults apply when empty)")
	rootCmd.PersistentFlags().Int64("seed", 0, "Override the config seed (0 keeps the config value)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newServeCmd(),
		newReplayCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cbdcsim version %s\n", version)
		},
	}
}
