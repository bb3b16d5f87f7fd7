package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/workmatch/api/internal/alerts"
	"github.com/workmatch/api/internal/clock"
	"github.com/workmatch/api/internal/config"
	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/messaging"
	"github.com/workmatch/api/internal/server"
	"github.com/workmatch/api/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.String("config", "", "path to a YAML config file")
		driver     = pflag.String("store", "", "store driver: memory, postgres or mongo")
		addr       = pflag.String("addr", "", "listen address, e.g. :8080")
		notifier   = pflag.Bool("notifier", false, "also process notification tasks in this process")
	)
	pflag.Parse()

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := messaging.NewHub(logger)
	publishers := marketplace.Publishers{hub}

	var worker *asynq.Server
	if cfg.Notify.RedisAddr != "" {
		client := alerts.NewClient(cfg.Notify.RedisAddr)
		defer client.Close()
		publishers = append(publishers, alerts.NewQueue(client, cfg.Notify.Queue))

		if *notifier {
			worker = alerts.NewServer(cfg.Notify.RedisAddr, cfg.Notify.Queue, cfg.Notify.Concurrency, logger)
			proc := alerts.NewProcessor(st, alerts.NewSender(cfg.Notify, logger), logger)
			if err := worker.Start(proc.Mux()); err != nil {
				return fmt.Errorf("start notifier: %w", err)
			}
			defer worker.Shutdown()
		}
		logger.Info("notifications enabled", slog.String("redis", cfg.Notify.RedisAddr))
	} else {
		logger.Info("notifications disabled: no redis address configured")
	}

	svc := marketplace.NewService(st, publishers, clock.Real(), logger)
	e := server.New(server.Deps{
		Service:        svc,
		Hub:            hub,
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		Logger:         logger,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Server.Addr), slog.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
