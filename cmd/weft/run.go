package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft"
	"github.com/weftworks/weft/internal/config"
	filePatterns "github.com/weftworks/weft/pkg/adapters/file"
	httpAdapter "github.com/weftworks/weft/pkg/adapters/http"
	"github.com/weftworks/weft/pkg/adapters/memory"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine fully in process",
	Long: `Runs the engine with in-memory transports and storage. Patterns are
loaded from the configured directory; events are injected over the HTTP
admin surface. State does not survive a restart — use serve for that.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := weft.New(ctx,
			weft.WithLogger(logger),
			weft.WithPatternLoader(filePatterns.NewLoader(cfg.Patterns.Dir)),
			weft.WithLogStore(memory.NewStore()),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		srv := &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: httpAdapter.NewHandler(eng, logger),
		}
		go func() {
			logger.Info("admin server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("admin server failed", "err", err)
				stop()
			}
		}()
		defer srv.Close()

		logger.Info("engine running in process", "patterns", cfg.Patterns.Dir)
		return eng.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
