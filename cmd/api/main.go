package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sales-insights-go/internal/app"
	"sales-insights-go/internal/config"
	"sales-insights-go/internal/httpapi"
	"sales-insights-go/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.FromEnv().WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)
	log.WithField("service", "sales-insights-go").
		WithField("environment", cfg.Environment).
		Info("starting service")

	a, err := app.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise application")
	}
	defer a.Close()

	api := httpapi.NewServer(a.Store, a.Pipeline, a.Batch, a.Ingester, a.Registry, log)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("server stopped")
}
