package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string   `json:"serverAddress"`
	DatabasePath  string   `json:"databasePath"`
	DatabaseURL   string   `json:"databaseUrl"`
	Security      Security `json:"security"`
	Replay        Replay   `json:"replay"`
	Ledger        Ledger   `json:"ledger"`
	Agent         Agent    `json:"agent"`
}

// Security configuration
type Security struct {
	APIKeyHeader string `json:"apiKeyHeader"`
}

// Replay configuration for stale event rejection
type Replay struct {
	TTLHours int `json:"ttlHours"`
}

// TTL returns the replay window as a duration
func (r Replay) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}

// Ledger configuration for the commit record sweep
type Ledger struct {
	SweepEnabled       bool `json:"sweepEnabled"`
	SweepIntervalHours int  `json:"sweepIntervalHours"`
	RetentionHours     int  `json:"retentionHours"`
}

// Agent configuration for the on-device clock agent
type Agent struct {
	ServerURL            string `json:"serverUrl"`
	APIKey               string `json:"apiKey"`
	QueuePath            string `json:"queuePath"`
	DeviceID             string `json:"deviceId"`
	ProbeIntervalSeconds int    `json:"probeIntervalSeconds"`
	DrainIntervalSeconds int    `json:"drainIntervalSeconds"`
	MaxRetries           int    `json:"maxRetries"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "fieldclock.db",
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
		Replay: Replay{
			TTLHours: 24,
		},
		Ledger: Ledger{
			SweepEnabled:       true,
			SweepIntervalHours: 1,
			RetentionHours:     48,
		},
		Agent: Agent{
			ServerURL:            "http://localhost:5000",
			QueuePath:            "fieldclock-queue.db",
			ProbeIntervalSeconds: 30,
			DrainIntervalSeconds: 60,
			MaxRetries:           8,
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if ttl := os.Getenv("REPLAY_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil && hours > 0 {
			cfg.Replay.TTLHours = hours
		}
	}
	if enabled := os.Getenv("LEDGER_SWEEP_ENABLED"); enabled != "" {
		cfg.Ledger.SweepEnabled = enabled == "true" || enabled == "1"
	}
	if retention := os.Getenv("LEDGER_RETENTION_HOURS"); retention != "" {
		if hours, err := strconv.Atoi(retention); err == nil && hours > 0 {
			cfg.Ledger.RetentionHours = hours
		}
	}

	// Agent settings
	if url := os.Getenv("FIELDCLOCK_SERVER_URL"); url != "" {
		cfg.Agent.ServerURL = url
	}
	if key := os.Getenv("FIELDCLOCK_API_KEY"); key != "" {
		cfg.Agent.APIKey = key
	}
	if path := os.Getenv("FIELDCLOCK_QUEUE_PATH"); path != "" {
		cfg.Agent.QueuePath = path
	}
	if device := os.Getenv("FIELDCLOCK_DEVICE_ID"); device != "" {
		cfg.Agent.DeviceID = device
	}

	return cfg, nil
}
