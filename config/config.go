// Package config provides configuration management for the IPsec client.
// It handles loading, saving, and managing application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BojanKomazec/IpSec/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// PhonebookScope selects the phonebook: "user" or "all-users".
	PhonebookScope string `yaml:"phonebook_scope"`
	// DialTimeout bounds a single dial.
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// HangUpTimeout bounds how long a hang-up waits for the port to be released.
	HangUpTimeout time.Duration `yaml:"hangup_timeout"`
	// DefaultEntry is preselected by the menu and the tray.
	DefaultEntry string `yaml:"default_entry,omitempty"`
	// DefaultServer is used when no server is given and no profile exists.
	DefaultServer string `yaml:"default_server,omitempty"`
	// DefaultUsername is used when no user name is given and no profile exists.
	DefaultUsername string `yaml:"default_username,omitempty"`
	// SaveCredentials stores dial passwords in the system keyring.
	SaveCredentials bool `yaml:"save_credentials"`
	// AutoReconnect automatically redials an unhealthy connection.
	AutoReconnect bool `yaml:"auto_reconnect"`
	// HealthCheckInterval is how often a live connection is probed. Zero disables it.
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	// HealthCheckHosts are probed over TCP through the tunnel.
	HealthCheckHosts []string `yaml:"health_check_hosts,omitempty"`
	// History configures the connection history database.
	History HistoryConfig `yaml:"history"`
	// MetricsAddr is the listen address of the metrics endpoint; empty disables it.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	// MQTT configures state publishing.
	MQTT MQTTConfig `yaml:"mqtt"`
	// STUNServer is queried to verify the public address.
	STUNServer string `yaml:"stun_server"`
	// Logging configures the application log.
	Logging LoggingConfig `yaml:"logging"`
}

// HistoryConfig configures the connection history.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path of the database; defaults to the data directory.
	Path string `yaml:"path,omitempty"`
}

// MQTTConfig configures the MQTT publisher. An empty broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker,omitempty"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FileOutput bool   `yaml:"file_output"`
	Dir        string `yaml:"dir,omitempty"`
}

// DefaultConfig returns the default configuration.
// These are sensible defaults for most users.
func DefaultConfig() *Config {
	return &Config{
		PhonebookScope:      common.ScopeUser,
		DialTimeout:         common.DialTimeout,
		HangUpTimeout:       common.HangUpTimeout,
		SaveCredentials:     true,
		AutoReconnect:       false,
		HealthCheckInterval: 30 * time.Second,
		History: HistoryConfig{
			Enabled: true,
		},
		MQTT: MQTTConfig{
			ClientID:    common.DefaultMQTTClient,
			TopicPrefix: common.DefaultMQTTPrefix,
		},
		STUNServer: common.DefaultSTUNServer,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from configPath, creating the file
// with default values if it doesn't exist.
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(configPath); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening configuration: %w", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: error parsing configuration: %w", common.ErrConfigLoad, err)
	}

	config.validate()
	return config, nil
}

// validate replaces invalid values with their defaults.
func (c *Config) validate() {
	def := DefaultConfig()

	if c.PhonebookScope != common.ScopeUser && c.PhonebookScope != common.ScopeAllUsers {
		common.LogWarn("Invalid phonebook_scope %q, using %q", c.PhonebookScope, def.PhonebookScope)
		c.PhonebookScope = def.PhonebookScope
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.HangUpTimeout <= 0 {
		c.HangUpTimeout = def.HangUpTimeout
	}
	if c.HealthCheckInterval < 0 {
		c.HealthCheckInterval = def.HealthCheckInterval
	}
	if c.MQTT.QoS > 2 {
		c.MQTT.QoS = 0
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if c.STUNServer == "" {
		c.STUNServer = def.STUNServer
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !common.StringInSlice(c.Logging.Level, validLevels) {
		c.Logging.Level = def.Logging.Level
	}
}

// Save saves the configuration to the default file.
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to configPath.
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %w", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %w", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: error saving configuration: %w", common.ErrConfigSave, err)
	}

	return nil
}

// HistoryPath returns the configured history database path or the default
// one in the data directory.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := common.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.HistoryFileName), nil
}

// Path returns the path of the default configuration file.
func Path() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}
