package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
device_id: ward-7-pump-3
devices:
  - name: bedside-loadcell
    type: loadcell
    enabled: true
    serial_device: /dev/ttyUSB0
    baud: 115200
  - name: bedside-dripsensor
    type: dripsensor
    enabled: true
    hostname: 10.0.0.14
    port: "9102"
  - name: spare-loadcell
    type: loadcell
    enabled: false
    serial_device: /dev/ttyUSB1
core:
  target_empty_g: 5
  drops_per_ml: 20
  filters:
    weight_r: 25.0
storage:
  sqlite:
    path: /var/lib/fusionflow/telemetry.db
controllers:
  - type: rest
    rest:
      http_port: 8080
  - type: cloud
    cloud:
      api_endpoint: https://api.example.com/infusion
      upload_interval: "5"
`

func writeTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	provider := NewYAMLProvider(writeTempConfig(t))
	cfg, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DeviceID != "ward-7-pump-3" {
		t.Errorf("device_id = %q", cfg.DeviceID)
	}
	if len(cfg.Devices) != 3 {
		t.Fatalf("devices = %d, want 3", len(cfg.Devices))
	}
	if cfg.Devices[0].Type != "loadcell" || cfg.Devices[0].SerialDevice != "/dev/ttyUSB0" {
		t.Errorf("unexpected loadcell device: %+v", cfg.Devices[0])
	}
	if cfg.Devices[1].Hostname != "10.0.0.14" || cfg.Devices[1].Port != "9102" {
		t.Errorf("unexpected dripsensor device: %+v", cfg.Devices[1])
	}
	if cfg.Devices[2].Enabled {
		t.Error("spare device should be disabled")
	}

	if cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path != "/var/lib/fusionflow/telemetry.db" {
		t.Errorf("unexpected sqlite storage config: %+v", cfg.Storage.SQLite)
	}
	if len(cfg.Controllers) != 2 {
		t.Fatalf("controllers = %d, want 2", len(cfg.Controllers))
	}
	if cfg.Controllers[0].RESTServer == nil || cfg.Controllers[0].RESTServer.HTTPPort != 8080 {
		t.Errorf("unexpected rest controller: %+v", cfg.Controllers[0])
	}
	if cfg.Controllers[1].CloudUpload == nil || cfg.Controllers[1].CloudUpload.UploadInterval != "5" {
		t.Errorf("unexpected cloud controller: %+v", cfg.Controllers[1])
	}
}

func TestCoreDefaultsApplied(t *testing.T) {
	provider := NewYAMLProvider(writeTempConfig(t))
	cfg, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	core := cfg.Core
	if core.TickInterval != "1s" {
		t.Errorf("tick interval default = %q, want 1s", core.TickInterval)
	}
	if core.EquipmentTareG != 12 || core.EmptyBagTareG != 60 {
		t.Errorf("tare defaults = (%v, %v), want (12, 60)", core.EquipmentTareG, core.EmptyBagTareG)
	}
	if core.TargetEmptyG != 5 {
		t.Errorf("target empty = %v, want explicit 5", core.TargetEmptyG)
	}
	if core.LiquidDensity != 1.0 {
		t.Errorf("density default = %v, want 1.0", core.LiquidDensity)
	}

	// Explicit values survive; everything else gets the reference default.
	if core.Filters.WeightR != 25.0 {
		t.Errorf("weight R = %v, want explicit 25.0", core.Filters.WeightR)
	}
	d := DefaultFilterData()
	if core.Filters.DripR != d.DripR || core.Filters.FusionRDripFlow != d.FusionRDripFlow {
		t.Errorf("filter defaults not applied: %+v", core.Filters)
	}
}

func TestYAMLProviderMissingFile(t *testing.T) {
	provider := NewYAMLProvider("/nonexistent/config.yaml")
	if _, err := provider.LoadConfig(); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
