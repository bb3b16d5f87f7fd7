// Command notifier processes queued notification tasks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/workmatch/api/internal/alerts"
	"github.com/workmatch/api/internal/config"
	"github.com/workmatch/api/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "", "path to a YAML config file")
	driver := pflag.String("store", "", "store driver used to resolve recipients")
	pflag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if cfg.Notify.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR (notify.redis_addr) is required")
	}
	logger := cfg.Log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := alerts.NewServer(cfg.Notify.RedisAddr, cfg.Notify.Queue, cfg.Notify.Concurrency, logger)
	proc := alerts.NewProcessor(st, alerts.NewSender(cfg.Notify, logger), logger)
	if err := srv.Start(proc.Mux()); err != nil {
		return fmt.Errorf("start notifier: %w", err)
	}
	logger.Info("notifier running", slog.String("redis", cfg.Notify.RedisAddr), slog.String("queue", cfg.Notify.Queue), slog.String("provider", cfg.Notify.Provider))

	<-ctx.Done()
	logger.Info("notifier stopping")
	srv.Shutdown()
	return nil
}
