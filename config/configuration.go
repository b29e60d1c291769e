package config

import (
	"log/slog"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
)

var Version = "dev"

type AppConfig struct {
	DevMode         bool   `arg:"--dev,env:DEV_MODE" default:"false"`
	HTTPPort        int    `arg:"--http-port,env:HTTP_PORT" default:"3000"`
	GRPCPort        int    `arg:"--grpc-port,env:GRPC_PORT" default:"50051" help:"Reserved for the gRPC ingress adapter."`
	LogLevel        string `arg:"--log-level,env:LOG_LEVEL" default:"default" help:"Log level to use.  Valid values are: debug, info, and warn/warning.  If default the level will be info or debug in dev mode."`
	OrderQueueSize  int    `arg:"--order-queue-size,env:ORDER_QUEUE_SIZE" default:"1024" help:"Bounded capacity of the order queue."`
	EventBufferSize int    `arg:"--event-buffer-size,env:EVENT_BUFFER_SIZE" default:"1024" help:"Per-subscriber buffered event capacity."`
	MaxAttempts     int    `arg:"--max-attempts,env:MAX_ATTEMPTS" default:"20" help:"Assignment attempts before an order is marked failed."`
}

func LoadConfig() (*AppConfig, error) {
	// .env is optional; real env vars win either way
	if err := godotenv.Load(".env"); err == nil {
		slog.Info("Loaded .env")
	}

	var appConfig AppConfig
	arg.MustParse(&appConfig)

	if appConfig.LogLevel == "default" {
		if appConfig.DevMode {
			logLevel.Set(slog.LevelDebug)
		} else {
			logLevel.Set(slog.LevelInfo)
		}
	} else {
		intendedLevel := strings.ToLower(appConfig.LogLevel)
		switch intendedLevel {
		case "debug":
			logLevel.Set(slog.LevelDebug)
		case "info":
			logLevel.Set(slog.LevelInfo)
		case "warn", "warning":
			logLevel.Set(slog.LevelWarn)
		default:
			slog.Error("Unable to configure log level", "level", appConfig.LogLevel)
		}
	}

	return &appConfig, nil
}
