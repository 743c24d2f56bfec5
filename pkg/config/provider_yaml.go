package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

type deviceYAML struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type,omitempty"`
	Enabled      bool   `yaml:"enabled"`
	SerialDevice string `yaml:"serial_device,omitempty"`
	Baud         int    `yaml:"baud,omitempty"`
	Hostname     string `yaml:"hostname,omitempty"`
	Port         string `yaml:"port,omitempty"`
}

type coreYAML struct {
	TickInterval   string     `yaml:"tick_interval,omitempty"`
	EquipmentTareG float32    `yaml:"equipment_tare_g,omitempty"`
	EmptyBagTareG  float32    `yaml:"empty_bag_tare_g,omitempty"`
	TargetEmptyG   float32    `yaml:"target_empty_g,omitempty"`
	DropsPerMl     int        `yaml:"drops_per_ml,omitempty"`
	LiquidDensity  float32    `yaml:"liquid_density_g_per_ml,omitempty"`
	Filters        FilterData `yaml:"filters,omitempty"`
}

type storageYAML struct {
	SQLite   *SQLiteData   `yaml:"sqlite,omitempty"`
	Postgres *PostgresData `yaml:"postgres,omitempty"`
}

type controllerYAML struct {
	Type        string           `yaml:"type,omitempty"`
	RESTServer  *RESTServerData  `yaml:"rest,omitempty"`
	CloudUpload *CloudUploadData `yaml:"cloud,omitempty"`
}

// LoadConfig loads the complete configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var yamlConfig struct {
		DeviceID    string           `yaml:"device_id,omitempty"`
		Devices     []deviceYAML     `yaml:"devices"`
		Core        coreYAML         `yaml:"core,omitempty"`
		Storage     storageYAML      `yaml:"storage,omitempty"`
		Controllers []controllerYAML `yaml:"controllers,omitempty"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, err
	}

	config := &ConfigData{
		DeviceID:    yamlConfig.DeviceID,
		Devices:     make([]DeviceData, len(yamlConfig.Devices)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, device := range yamlConfig.Devices {
		config.Devices[i] = DeviceData{
			Name:         device.Name,
			Type:         device.Type,
			Enabled:      device.Enabled,
			SerialDevice: device.SerialDevice,
			Baud:         device.Baud,
			Hostname:     device.Hostname,
			Port:         device.Port,
		}
	}

	config.Core = CoreData{
		TickInterval:   yamlConfig.Core.TickInterval,
		EquipmentTareG: yamlConfig.Core.EquipmentTareG,
		EmptyBagTareG:  yamlConfig.Core.EmptyBagTareG,
		TargetEmptyG:   yamlConfig.Core.TargetEmptyG,
		DropsPerMl:     yamlConfig.Core.DropsPerMl,
		LiquidDensity:  yamlConfig.Core.LiquidDensity,
		Filters:        yamlConfig.Core.Filters,
	}
	config.Core.ApplyDefaults()

	config.Storage = StorageData{}
	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{
			Path: yamlConfig.Storage.SQLite.Path,
		}
	}
	if yamlConfig.Storage.Postgres != nil {
		config.Storage.Postgres = &PostgresData{
			ConnectionString: yamlConfig.Storage.Postgres.ConnectionString,
		}
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type:        controller.Type,
			RESTServer:  controller.RESTServer,
			CloudUpload: controller.CloudUpload,
		}
	}

	y.config = config
	return config, nil
}

// GetDevices returns the device configurations
func (y *YAMLProvider) GetDevices() ([]DeviceData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config.Devices, nil
}

// GetStorageConfig returns the storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// GetControllers returns the controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config.Controllers, nil
}

// IsReadOnly returns true; YAML configs are not writable at runtime
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML providers
func (y *YAMLProvider) Close() error {
	return nil
}
