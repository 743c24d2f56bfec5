// Package config provides configuration loading for the infusion monitor
// from YAML files or SQLite databases.
package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDevices() ([]DeviceData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	// Configuration management
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	DeviceID    string           `json:"device_id,omitempty"`
	Devices     []DeviceData     `json:"devices"`
	Core        CoreData         `json:"core,omitempty"`
	Storage     StorageData      `json:"storage,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// DeviceData holds configuration specific to a sensor device
type DeviceData struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"` // "loadcell" or "dripsensor"
	Enabled      bool   `json:"enabled"`
	SerialDevice string `json:"serial_device,omitempty"`
	Baud         int    `json:"baud,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	Port         string `json:"port,omitempty"`
}

// CoreData holds the estimation core's timing and physical parameters.
// Zero values are replaced by the reference defaults at load time.
type CoreData struct {
	TickInterval   string     `json:"tick_interval,omitempty"`           // default 1s
	EquipmentTareG float32    `json:"equipment_tare_g,omitempty"`        // default 12
	EmptyBagTareG  float32    `json:"empty_bag_tare_g,omitempty"`        // default 60
	TargetEmptyG   float32    `json:"target_empty_g,omitempty"`          // default 0
	DropsPerMl     int        `json:"drops_per_ml,omitempty"`            // default 20
	LiquidDensity  float32    `json:"liquid_density_g_per_ml,omitempty"` // default 1.0
	Filters        FilterData `json:"filters,omitempty"`
}

// FilterData holds every Kalman tuning constant of the estimation core.
type FilterData struct {
	WeightSigmaA float64 `json:"weight_sigma_a,omitempty"`
	WeightSigmaJ float64 `json:"weight_sigma_j,omitempty"`
	WeightR      float64 `json:"weight_r,omitempty"`

	DripSigmaA float64 `json:"drip_sigma_a,omitempty"`
	DripR      float64 `json:"drip_r,omitempty"`

	WpdQ float64 `json:"wpd_q,omitempty"`
	WpdR float64 `json:"wpd_r,omitempty"`

	FusionQFlow       float64 `json:"fusion_q_flow,omitempty"`
	FusionRWeightFlow float64 `json:"fusion_r_weight_flow,omitempty"`
	FusionRDripFlow   float64 `json:"fusion_r_drip_flow,omitempty"`
	FusionQRemaining  float64 `json:"fusion_q_remaining,omitempty"`
	FusionRWeightRem  float64 `json:"fusion_r_weight_remaining,omitempty"`
	FusionRDripRem    float64 `json:"fusion_r_drip_remaining,omitempty"`
}

// StorageData holds the configuration for snapshot telemetry sinks
type StorageData struct {
	SQLite   *SQLiteData   `json:"sqlite,omitempty"`
	Postgres *PostgresData `json:"postgres,omitempty"`
}

// SQLiteData configures the local SQLite snapshot sink
type SQLiteData struct {
	Path string `json:"path"`
}

// PostgresData configures the PostgreSQL/TimescaleDB snapshot sink
type PostgresData struct {
	ConnectionString string `json:"connection_string"`
}

// ControllerData holds the configuration for outward-facing controllers
type ControllerData struct {
	Type        string           `json:"type,omitempty"`
	RESTServer  *RESTServerData  `json:"rest,omitempty"`
	CloudUpload *CloudUploadData `json:"cloud,omitempty"`
}

// RESTServerData configures the dashboard HTTP/WebSocket server
type RESTServerData struct {
	DefaultListenAddr string `json:"default_listen_addr,omitempty"`
	HTTPPort          int    `json:"http_port,omitempty"`
	TLSCertPath       string `json:"cert,omitempty"`
	TLSKeyPath        string `json:"key,omitempty"`
}

// CloudUploadData configures the periodic JSON uploader
type CloudUploadData struct {
	APIEndpoint    string `json:"api_endpoint"`
	APIKey         string `json:"api_key,omitempty"`
	UploadInterval string `json:"upload_interval,omitempty"` // seconds, default 5
}

// DefaultFilterData returns the reference filter tunings.
func DefaultFilterData() FilterData {
	return FilterData{
		WeightSigmaA: 0.0005,
		WeightSigmaJ: 1e-6,
		WeightR:      50.0,

		DripSigmaA: 0.00001,
		DripR:      0.05,

		WpdQ: 0.00000001,
		WpdR: 0.0001,

		FusionQFlow:       0.0000001,
		FusionRWeightFlow: 0.01,
		FusionRDripFlow:   0.0005,
		FusionQRemaining:  0.01,
		FusionRWeightRem:  1.0,
		FusionRDripRem:    1.0,
	}
}

// ApplyDefaults fills zero-valued core parameters with the reference values.
func (c *CoreData) ApplyDefaults() {
	if c.TickInterval == "" {
		c.TickInterval = "1s"
	}
	if c.EquipmentTareG == 0 {
		c.EquipmentTareG = 12.0
	}
	if c.EmptyBagTareG == 0 {
		c.EmptyBagTareG = 60.0
	}
	if c.DropsPerMl == 0 {
		c.DropsPerMl = 20
	}
	if c.LiquidDensity == 0 {
		c.LiquidDensity = 1.0
	}
	d := DefaultFilterData()
	if c.Filters.WeightSigmaA == 0 {
		c.Filters.WeightSigmaA = d.WeightSigmaA
	}
	if c.Filters.WeightSigmaJ == 0 {
		c.Filters.WeightSigmaJ = d.WeightSigmaJ
	}
	if c.Filters.WeightR == 0 {
		c.Filters.WeightR = d.WeightR
	}
	if c.Filters.DripSigmaA == 0 {
		c.Filters.DripSigmaA = d.DripSigmaA
	}
	if c.Filters.DripR == 0 {
		c.Filters.DripR = d.DripR
	}
	if c.Filters.WpdQ == 0 {
		c.Filters.WpdQ = d.WpdQ
	}
	if c.Filters.WpdR == 0 {
		c.Filters.WpdR = d.WpdR
	}
	if c.Filters.FusionQFlow == 0 {
		c.Filters.FusionQFlow = d.FusionQFlow
	}
	if c.Filters.FusionRWeightFlow == 0 {
		c.Filters.FusionRWeightFlow = d.FusionRWeightFlow
	}
	if c.Filters.FusionRDripFlow == 0 {
		c.Filters.FusionRDripFlow = d.FusionRDripFlow
	}
	if c.Filters.FusionQRemaining == 0 {
		c.Filters.FusionQRemaining = d.FusionQRemaining
	}
	if c.Filters.FusionRWeightRem == 0 {
		c.Filters.FusionRWeightRem = d.FusionRWeightRem
	}
	if c.Filters.FusionRDripRem == 0 {
		c.Filters.FusionRDripRem = d.FusionRDripRem
	}
}
