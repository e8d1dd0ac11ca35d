package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft is an event-driven pattern orchestration engine",
	Long: `Weft consumes events from a queue, matches them against declarative
patterns and advances per-conversation state machines (threds),
dispatching addressed messages to the resolved participants.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the TOML config file (default ./weft.toml)")
}
