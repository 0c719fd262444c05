// Package common provides shared constants, types, and utilities
// used across the IPsec client.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.bojankom.ipsecclient"
	// AppName is the display name of the application.
	AppName = "IPsec Client"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "ipsec-client"
)

// File names used by the application.
const (
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	HistoryFileName     = "history.db"
	LogFileName         = "ipsec-client.log"
)

// Default timeouts and intervals.
const (
	// DialTimeout is the maximum time to wait for a dial to complete.
	DialTimeout = 60 * time.Second
	// HangUpTimeout bounds how long a hang-up waits for the handle to be released.
	HangUpTimeout = 10 * time.Second
	// HangUpPollInterval is how often the connection state is polled after a hang-up.
	HangUpPollInterval = 50 * time.Millisecond
	// MonitorInterval is how often to check connection status.
	MonitorInterval = 1 * time.Second
	// ReconnectDelay is the delay before attempting to reconnect.
	ReconnectDelay = 5 * time.Second
	// PublicIPTimeout bounds a STUN public address lookup.
	PublicIPTimeout = 5 * time.Second
)

// Placeholder server address written into new entries. The real
// address is supplied on every dial.
const PlaceholderServer = "0.0.0.0"

// Keys accepted by the keyed form of connect parameters.
const (
	ParamUsername       = "username"
	ParamPassword       = "password"
	ParamConnectionName = "IpSecConnectionName"
)

// Phonebook scopes as written in the configuration file.
const (
	ScopeUser     = "user"
	ScopeAllUsers = "all-users"
)

// Defaults for optional integrations.
const (
	DefaultSTUNServer  = "stun.l.google.com:19302"
	DefaultMQTTPrefix  = "ipsec-client"
	DefaultMQTTClient  = "ipsec-client"
	DefaultMetricsPath = "/metrics"
)
