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
	"time"

	"golang.org/x/sync/errgroup"

	"basecamp/internal/platform/config"
	"basecamp/internal/platform/httpserver"
	"basecamp/internal/platform/logger"
)

// redisStatsInterval is how often pool statistics are exported.
const redisStatsInterval = 15 * time.Second

// main wires dependencies, resumes unfinished screenings and serves HTTP
// until SIGINT or SIGTERM. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing basecamp",
		"addr", cfg.Addr,
		"environment", string(cfg.Environment),
	)

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	app, err := buildApp(cfg, infra, log)
	if err != nil {
		return err
	}

	resumed, err := app.orchestrator.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume screenings: %w", err)
	}
	log.Info("resumed unfinished screenings", "count", resumed)

	srv := httpserver.New(cfg.Addr, app.router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return app.outbox.Run(gctx)
	})
	if infra.redis != nil {
		g.Go(func() error {
			ticker := time.NewTicker(redisStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					infra.redis.RecordPoolStats()
				}
			}
		})
	}
	if app.memLimits != nil && cfg.Screening.SubmitRateWindow > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Screening.SubmitRateWindow)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case now := <-ticker.C:
					app.memLimits.Sweep(now, cfg.Screening.SubmitRateWindow)
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully", "grace", cfg.ShutdownGrace.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := app.orchestrator.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("workflow shutdown: %w", err))
		}
		app.audit.Close()
		return errors.Join(errs...)
	})

	return g.Wait()
}
