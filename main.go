package main

import (
	"context"
	"embed"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vearutop/statigz"
	"github.com/vearutop/statigz/zstd"

	"github.com/sweater-ventures/dispatch/api"
	"github.com/sweater-ventures/dispatch/app"
	"github.com/sweater-ventures/dispatch/config"
	"github.com/sweater-ventures/dispatch/middleware"
)

//go:embed static/*
var static embed.FS

func main() {
	config.InitLogging()
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Unable to load configuration!!!", err)
	}

	application := app.NewApp(appConfig)
	defer application.Close()

	slog.Debug("Configuration",
		"DevMode", appConfig.DevMode,
		"LogLevel", appConfig.LogLevel,
		"OrderQueueSize", appConfig.OrderQueueSize,
		"EventBufferSize", appConfig.EventBufferSize,
		"MaxAttempts", appConfig.MaxAttempts,
		"GRPCPort", appConfig.GRPCPort,
	)

	router := http.NewServeMux()
	if appConfig.DevMode {
		router.Handle("/static/", http.StripPrefix("/static", http.FileServer(http.Dir("static"))))
	} else {
		router.Handle("/static/", statigz.FileServer(static, zstd.AddEncoding))
	}
	router.Handle("/{$}", http.RedirectHandler("/static/", http.StatusFound))
	api.AddApis(application, router)

	// Start the assignment engine
	app.StartEngine(application)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", appConfig.HTTPPort),
		Handler: middleware.AllStandardMiddleware(router),
	}

	// Listen for shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Starting Dispatch", "port", appConfig.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-sigChan
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// application.Close() runs via defer:
	// 1. Engine stops dequeuing and drains what it can
	// 2. Event bus closes, signalling all stream subscribers
	slog.Info("Shutdown complete")
}
