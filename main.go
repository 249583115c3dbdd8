package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nvr-kiosk/work/config"
	"nvr-kiosk/work/kiosk"
	"nvr-kiosk/work/logger"
	"nvr-kiosk/work/middleware"
)

func main() {
	cfg := config.LoadConfig()

	if cfg.Debug {
		logger.SetLogLevel("DEBUG")
	}

	k, err := kiosk.New(cfg)
	if err != nil {
		logger.Error("Startup failed: %v", err)
		os.Exit(1)
	}

	k.Start()
	tc := k.TourConfig()
	logger.Info("Kiosk started: %d cameras on a %d-slot grid",
		len(tc.ActiveCameraIDs), tc.GridSize)

	router := mux.NewRouter()
	router.Use(middleware.Compression)
	setupAdminRoutes(router, k)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Admin API listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown: %v", err)
	}
	k.Shutdown()
	logger.Info("Shutdown complete")
}
