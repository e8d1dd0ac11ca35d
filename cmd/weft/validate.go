package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/config"
	filePatterns "github.com/weftworks/weft/pkg/adapters/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check pattern definitions for consistency",
	Long: `Parses every pattern file in the directory and reports structural
problems: missing ids, unknown transition targets, malformed
conditions. Exits non-zero when any pattern is invalid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		} else {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			dir = cfg.Patterns.Dir
		}

		patterns, err := filePatterns.NewLoader(dir).LoadPatterns(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		for _, p := range patterns {
			fmt.Printf("  %s (%d reactions)\n", p.ID, len(p.Reactions))
		}
		fmt.Printf("%d patterns valid\n", len(patterns))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
