package config

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from the SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	row := s.db.QueryRow(`SELECT device_id FROM configs WHERE name = 'default'`)
	if err := row.Scan(&config.DeviceID); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load config row: %w", err)
	}

	devices, err := s.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to load devices: %w", err)
	}
	config.Devices = devices

	core, err := s.getCoreConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load core config: %w", err)
	}
	config.Core = *core

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

// GetDevices returns device configurations from the database
func (s *SQLiteProvider) GetDevices() ([]DeviceData, error) {
	query := `
		SELECT name, type, enabled, serial_device, baud, hostname, port
		FROM devices
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []DeviceData
	for rows.Next() {
		var d DeviceData
		var serialDevice, hostname, port sql.NullString
		var baud sql.NullInt64

		err := rows.Scan(&d.Name, &d.Type, &d.Enabled, &serialDevice, &baud, &hostname, &port)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}

		d.SerialDevice = serialDevice.String
		d.Baud = int(baud.Int64)
		d.Hostname = hostname.String
		d.Port = port.String

		devices = append(devices, d)
	}

	return devices, rows.Err()
}

func (s *SQLiteProvider) getCoreConfig() (*CoreData, error) {
	query := `
		SELECT tick_interval, equipment_tare_g, empty_bag_tare_g, target_empty_g,
		       drops_per_ml, liquid_density_g_per_ml
		FROM core_config
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')`

	core := &CoreData{}
	var tickInterval sql.NullString
	row := s.db.QueryRow(query)
	err := row.Scan(&tickInterval, &core.EquipmentTareG, &core.EmptyBagTareG,
		&core.TargetEmptyG, &core.DropsPerMl, &core.LiquidDensity)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to scan core config: %w", err)
	}
	core.TickInterval = tickInterval.String

	if err := s.loadFilterConfig(&core.Filters); err != nil {
		return nil, err
	}

	core.ApplyDefaults()
	return core, nil
}

func (s *SQLiteProvider) loadFilterConfig(f *FilterData) error {
	rows, err := s.db.Query(`
		SELECT name, value FROM filter_params
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')`)
	if err != nil {
		return fmt.Errorf("failed to query filter params: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("failed to scan filter param: %w", err)
		}
		switch name {
		case "weight_sigma_a":
			f.WeightSigmaA = value
		case "weight_sigma_j":
			f.WeightSigmaJ = value
		case "weight_r":
			f.WeightR = value
		case "drip_sigma_a":
			f.DripSigmaA = value
		case "drip_r":
			f.DripR = value
		case "wpd_q":
			f.WpdQ = value
		case "wpd_r":
			f.WpdR = value
		case "fusion_q_flow":
			f.FusionQFlow = value
		case "fusion_r_weight_flow":
			f.FusionRWeightFlow = value
		case "fusion_r_drip_flow":
			f.FusionRDripFlow = value
		case "fusion_q_remaining":
			f.FusionQRemaining = value
		case "fusion_r_weight_remaining":
			f.FusionRWeightRem = value
		case "fusion_r_drip_remaining":
			f.FusionRDripRem = value
		}
	}

	return rows.Err()
}

// GetStorageConfig returns the storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	storage := &StorageData{}

	rows, err := s.db.Query(`
		SELECT backend_type, path, connection_string
		FROM storage_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')`)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var backendType string
		var path, connectionString sql.NullString

		if err := rows.Scan(&backendType, &path, &connectionString); err != nil {
			return nil, fmt.Errorf("failed to scan storage config: %w", err)
		}

		switch backendType {
		case "sqlite":
			storage.SQLite = &SQLiteData{Path: path.String}
		case "postgres":
			storage.Postgres = &PostgresData{ConnectionString: connectionString.String}
		}
	}

	return storage, rows.Err()
}

// GetControllers returns the controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	rows, err := s.db.Query(`
		SELECT controller_type, listen_addr, http_port, cert, key,
		       api_endpoint, api_key, upload_interval
		FROM controller_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')`)
	if err != nil {
		return nil, fmt.Errorf("failed to query controller configs: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var controllerType string
		var listenAddr, cert, key, apiEndpoint, apiKey, uploadInterval sql.NullString
		var httpPort sql.NullInt64

		err := rows.Scan(&controllerType, &listenAddr, &httpPort, &cert, &key,
			&apiEndpoint, &apiKey, &uploadInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller config: %w", err)
		}

		controller := ControllerData{Type: controllerType}
		switch controllerType {
		case "rest":
			controller.RESTServer = &RESTServerData{
				DefaultListenAddr: listenAddr.String,
				HTTPPort:          int(httpPort.Int64),
				TLSCertPath:       cert.String,
				TLSKeyPath:        key.String,
			}
		case "cloud":
			controller.CloudUpload = &CloudUploadData{
				APIEndpoint:    apiEndpoint.String,
				APIKey:         apiKey.String,
				UploadInterval: uploadInterval.String,
			}
		}
		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// IsReadOnly returns false; SQLite configs support runtime modification
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
