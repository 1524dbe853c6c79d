package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magefree/mage-commander/internal/actionlog"
	"github.com/magefree/mage-commander/internal/config"
	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/server"
	"github.com/magefree/mage-commander/internal/store"
)

var (
	configPath = flag.String("config", "", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting commander server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Snapshot store
	snapshots, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	defer snapshots.Close()
	logger.Info("snapshot store initialized", zap.String("driver", cfg.Store.Driver))

	opts := []game.ManagerOption{game.WithSnapshotStore(snapshots)}

	// Action log
	if cfg.ActionLog.Enabled {
		actions, err := actionlog.Connect(ctx, cfg.ActionLog, logger)
		if err != nil {
			logger.Fatal("failed to connect action log", zap.Error(err))
		}
		defer actions.Close()
		opts = append(opts, game.WithActionSink(actions))
	}

	if cfg.Replay.Dir != "" {
		if err := os.MkdirAll(cfg.Replay.Dir, 0o755); err != nil {
			logger.Fatal("failed to create replay directory", zap.Error(err))
		}
		opts = append(opts, game.WithReplayDir(cfg.Replay.Dir))
	}

	gameMgr := game.NewManager(logger, opts...)
	hub := server.NewHub(logger)
	gameMgr.SetNotificationHandler(hub.Publish)
	go hub.Run(ctx)
	logger.Info("game manager initialized")

	settings := cfg.Settings()

	// gRPC
	grpcServer, healthSrv := server.NewGRPCServer(cfg.Server.GRPC, server.NewGameService(gameMgr, hub, settings, logger), logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// HTTP
	api := server.NewAPI(gameMgr, hub, snapshots, settings, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTP.Address,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	logger.Info("commander server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.Int("starting_life", settings.StartingLife),
		zap.String("command_zone_policy", string(settings.CommandZonePolicy)),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	healthSrv.SetServingStatus(server.GameServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	cancel()
	grpcServer.GracefulStop()

	logger.Info("commander server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
