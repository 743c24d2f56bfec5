package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/Owen1B/fusionflow/internal/controllers/cloudupload"
	"github.com/Owen1B/fusionflow/internal/controllers/restserver"
	"github.com/Owen1B/fusionflow/internal/core"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various
// controller backends
type Controller interface {
	StartController() error
}

// NewControllerManager creates a new controller manager. The snapshot and
// event channels push per-tick data to controllers that broadcast live.
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, c *core.Core,
	snapshots <-chan types.Snapshot, events <-chan types.Event, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		cfg:         cfg,
		core:        c,
		snapshots:   snapshots,
		events:      events,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	for _, con := range cfg.Controllers {
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %v", err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	cfg         *config.ConfigData
	core        *core.Core
	snapshots   <-chan types.Snapshot
	events      <-chan types.Event
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (cm *controllerManager) StartControllers() error {
	cm.logger.Info("Starting controller manager...")

	for _, controller := range cm.controllers {
		if err := controller.StartController(); err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	cm.logger.Infof("Started %d controllers successfully", len(cm.controllers))
	return nil
}

// createController creates a controller based on the controller configuration
func (cm *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "restserver", "rest":
		if cc.RESTServer == nil {
			return nil, fmt.Errorf("rest controller requires a rest config block")
		}
		return restserver.NewController(cm.ctx, cm.wg, cm.cfg, *cc.RESTServer, cm.core, cm.snapshots, cm.events, cm.logger)
	case "cloud", "cloudupload":
		if cc.CloudUpload == nil {
			return nil, fmt.Errorf("cloud controller requires a cloud config block")
		}
		return cloudupload.NewController(cm.ctx, cm.wg, cm.cfg, *cc.CloudUpload, cm.core, cm.logger)
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
