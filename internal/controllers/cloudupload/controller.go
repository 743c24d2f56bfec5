// Package cloudupload periodically posts a compact infusion status payload
// to the ward's cloud endpoint.
package cloudupload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Owen1B/fusionflow/internal/core"
	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Payload is the JSON document the cloud endpoint expects. Field
// derivations are a wire contract with the ward dashboard.
type Payload struct {
	DeviceID        string `json:"deviceId"`
	TotalVolume     int    `json:"totalVolume"`
	RemainingVolume int    `json:"remainingVolume"`
	CurrentRate     int    `json:"currentRate"`   // drops per minute
	EstimatedTime   int    `json:"estimatedTime"` // minutes, rounded up
	SystemState     string `json:"systemState"`
	AutoClamp       int    `json:"autoClamp"`
}

// Controller holds the cloud uploader configuration and HTTP client
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	cfg       *config.ConfigData
	uploadCfg config.CloudUploadData
	core      *core.Core
	deviceID  string
	interval  time.Duration
	client    *http.Client
	logger    *zap.SugaredLogger
}

// NewController creates a new cloud upload controller
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, uc config.CloudUploadData,
	c *core.Core, logger *zap.SugaredLogger) (*Controller, error) {
	if uc.APIEndpoint == "" {
		return nil, fmt.Errorf("cloud upload requires an api_endpoint")
	}

	interval := 5 * time.Second
	if uc.UploadInterval != "" {
		secs, err := strconv.Atoi(uc.UploadInterval)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid cloud upload_interval %q", uc.UploadInterval)
		}
		interval = time.Duration(secs) * time.Second
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
		logger.Infof("device_id not configured; generated %v", deviceID)
	}

	return &Controller{
		ctx:       ctx,
		wg:        wg,
		cfg:       cfg,
		uploadCfg: uc,
		core:      c,
		deviceID:  deviceID,
		interval:  interval,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}, nil
}

// StartController launches the periodic upload loop
func (c *Controller) StartController() error {
	log.Info("Starting cloud upload controller...")
	c.wg.Add(1)
	go c.sendPeriodicReports()
	return nil
}

func (c *Controller) sendPeriodicReports() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.upload(c.core.Snapshot()); err != nil {
				log.Errorf("cloud upload failed: %v", err)
			}
		case <-c.ctx.Done():
			log.Info("cancellation request received, stopping cloud uploads")
			return
		}
	}
}

// upload posts one snapshot-derived payload to the configured endpoint.
func (c *Controller) upload(snap types.Snapshot) error {
	payload := payloadFromSnapshot(snap, c.deviceID, c.cfg.Core.LiquidDensity)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.uploadCfg.APIEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.uploadCfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.uploadCfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not POST to %v: %w", c.uploadCfg.APIEndpoint, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloud endpoint returned %v", resp.Status)
	}

	log.Debugf("uploaded snapshot for device %v: state=%v remaining=%dmL",
		c.deviceID, payload.SystemState, payload.RemainingVolume)
	return nil
}

// payloadFromSnapshot derives the wire payload from a snapshot.
func payloadFromSnapshot(snap types.Snapshot, deviceID string, density float32) Payload {
	if density <= 1e-6 {
		density = 1.0
	}

	estimated := 0
	if snap.RemTimeFusedS > 0 {
		estimated = int(math.Ceil(float64(snap.RemTimeFusedS) / 60.0))
	}

	clamp := 0
	if snap.AutoClamp {
		clamp = 1
	}

	return Payload{
		DeviceID:        deviceID,
		TotalVolume:     int(snap.TotalVolumeMl),
		RemainingVolume: int(snap.FusedRemainingG / density),
		CurrentRate:     int(math.Round(float64(snap.FiltDripRate) * 60)),
		EstimatedTime:   estimated,
		SystemState:     snap.State.WireName(),
		AutoClamp:       clamp,
	}
}
