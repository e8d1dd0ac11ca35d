package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/weftworks/weft"
	"github.com/weftworks/weft/internal/config"
	filePatterns "github.com/weftworks/weft/pkg/adapters/file"
	httpAdapter "github.com/weftworks/weft/pkg/adapters/http"
	redisAdapter "github.com/weftworks/weft/pkg/adapters/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine as a durable service",
	Long: `Runs the engine against redis: streams for the inbound and outbound
queues, persistent thred storage, and a cross-replica lock so multiple
instances can share the consumer group safely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}

		source, err := redisAdapter.NewSource(ctx, client, cfg.Queue.InStream, cfg.Queue.Group, cfg.Queue.Consumer)
		if err != nil {
			return fmt.Errorf("failed to initialize event source: %w", err)
		}
		store := redisAdapter.NewStore(client)

		eng, err := weft.New(ctx,
			weft.WithLogger(logger),
			weft.WithEventSource(source),
			weft.WithMessageSink(redisAdapter.NewSink(client, cfg.Queue.OutStream)),
			weft.WithThredStore(store),
			weft.WithLogStore(store),
			weft.WithDistributedLocker(redisAdapter.NewLocker(client, "weft:lock:")),
			weft.WithPatternLoader(filePatterns.NewLoader(cfg.Patterns.Dir)),
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

		logger.Info("weft service started",
			"redis", cfg.Redis.Addr,
			"in", cfg.Queue.InStream,
			"out", cfg.Queue.OutStream,
			"consumer", cfg.Queue.Consumer,
		)
		runErr := eng.Run(ctx)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin server shutdown incomplete", "err", err)
			srv.Close()
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
