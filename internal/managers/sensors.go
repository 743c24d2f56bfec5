package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/Owen1B/fusionflow/internal/core"
	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/sensors"
	"github.com/Owen1B/fusionflow/internal/sensors/dripsensor"
	"github.com/Owen1B/fusionflow/internal/sensors/loadcell"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/config"
	"go.uber.org/zap"
)

// SensorManager starts and tracks the configured sensor stations.
type SensorManager struct {
	ctx     context.Context
	wg      *sync.WaitGroup
	logger  *zap.SugaredLogger
	sensors map[string]sensors.Sensor
}

// NewSensorManager creates a SensorManager populated with all enabled
// sensor devices, each wired to the core's ingest paths.
func NewSensorManager(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, c *core.Core, logger *zap.SugaredLogger) (*SensorManager, error) {
	sm := &SensorManager{
		ctx:     ctx,
		wg:      wg,
		logger:  logger,
		sensors: make(map[string]sensors.Sensor),
	}

	for _, deviceConfig := range cfg.Devices {
		if !deviceConfig.Enabled {
			logger.Infof("Skipping disabled device [%s]", deviceConfig.Name)
			continue
		}
		station, err := createSensorFromConfig(ctx, wg, deviceConfig, c, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating sensor [%s]: %w", deviceConfig.Name, err)
		}
		sm.sensors[deviceConfig.Name] = station
	}

	return sm, nil
}

// StartSensors starts every configured sensor station.
func (sm *SensorManager) StartSensors() error {
	for name, station := range sm.sensors {
		sm.logger.Infof("Starting sensor [%v]...", name)
		if err := station.StartSensor(); err != nil {
			return fmt.Errorf("failed to start sensor [%s]: %w", name, err)
		}
	}
	return nil
}

// createSensorFromConfig creates the appropriate sensor station based on
// the device type
func createSensorFromConfig(ctx context.Context, wg *sync.WaitGroup, deviceConfig config.DeviceData, c *core.Core, logger *zap.SugaredLogger) (sensors.Sensor, error) {
	dc := types.DeviceConfig{
		Name:         deviceConfig.Name,
		Type:         deviceConfig.Type,
		SerialDevice: deviceConfig.SerialDevice,
		Baud:         deviceConfig.Baud,
		Hostname:     deviceConfig.Hostname,
		Port:         deviceConfig.Port,
	}

	switch deviceConfig.Type {
	case "loadcell":
		log.Infof("Initializing load cell [%v]", deviceConfig.Name)
		return loadcell.NewStation(ctx, wg, dc, c, logger), nil
	case "dripsensor":
		log.Infof("Initializing drip sensor [%v]", deviceConfig.Name)
		return dripsensor.NewStation(ctx, wg, dc, c, logger), nil
	default:
		return nil, fmt.Errorf("unknown sensor type: %s", deviceConfig.Type)
	}
}
