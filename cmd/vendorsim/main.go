// Command vendorsim serves the simulated Checkr and Sterling APIs so the
// server can run end to end without vendor credentials. Point
// CHECKR_BASE_URL and STERLING_BASE_URL at it and use the same API key.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"basecamp/internal/platform/httpserver"
	"basecamp/internal/platform/logger"
	"basecamp/internal/screening/providers/fake"
	"basecamp/internal/screening/providers/vendorsim"
)

const (
	defaultAddr   = ":8091"
	defaultAPIKey = "vendorsim-key"
)

func main() {
	log := logger.New(getEnv("LOG_LEVEL", "info"))

	addr := getEnv("VENDORSIM_ADDR", defaultAddr)
	apiKey := getEnv("VENDORSIM_API_KEY", defaultAPIKey)
	pending, err := strconv.Atoi(getEnv("VENDORSIM_PENDING_POLLS", "2"))
	if err != nil {
		log.Error("invalid VENDORSIM_PENDING_POLLS", "error", err)
		os.Exit(1)
	}
	outcome := fake.Outcome(getEnv("VENDORSIM_DEFAULT_OUTCOME", string(fake.OutcomeClear)))

	sim := vendorsim.New(apiKey,
		vendorsim.WithPendingPolls(pending),
		vendorsim.WithDefaultOutcome(outcome),
	)
	srv := httpserver.New(addr, sim.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("vendorsim shutdown failed", "error", err)
		}
	}()

	log.Info("vendor simulator listening",
		"addr", addr,
		"pending_polls", pending,
		"default_outcome", string(outcome),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("vendorsim stopped", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
