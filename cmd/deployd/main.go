// Package main implements deployd, the deployment and provisioning
// server for generated applications.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/appforge/platform/internal/app"
	"github.com/appforge/platform/internal/app/httpapi"
	"github.com/appforge/platform/internal/config"
	"github.com/appforge/platform/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to yaml config (empty: environment only)")
	envFile := flag.String("env-file", ".env", "Path to .env file (missing file is ignored)")
	flag.Parse()

	log := logger.NewDefault("deployd")

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("could not load %s", *envFile)
	}

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		log.WithError(err).Error("load configuration")
		os.Exit(1)
	}

	application, err := app.New(cfg, app.Overrides{}, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewHandler(application),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("deployd listening")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
}
