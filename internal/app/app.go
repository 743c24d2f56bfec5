package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Owen1B/fusionflow/internal/core"
	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/managers"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}

	// The estimation core owns all filter and calibration state.
	c := core.New(cfg.Core)

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, cfg)
	if err != nil {
		return err
	}

	// Fan the core's published snapshots and events out to the storage
	// distributor and the live controllers.
	restSnapshots := make(chan types.Snapshot, 20)
	restEvents := make(chan types.Event, 32)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case snap := <-c.Snapshots():
				select {
				case storageManager.SnapshotDistributor <- snap:
				default:
				}
				select {
				case restSnapshots <- snap:
				default:
				}
			case ev := <-c.Events():
				select {
				case restEvents <- ev:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Initialize the sensor manager
	sm, err := managers.NewSensorManager(ctx, &wg, cfg, c, a.logger)
	if err != nil {
		return err
	}
	if err := sm.StartSensors(); err != nil {
		return err
	}

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, cfg, c, restSnapshots, restEvents, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	// Start the tick loop last so sensors have a chance to deliver their
	// first readings before the initial weight capture.
	c.Run(ctx, &wg)

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
