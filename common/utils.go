// Package common provides shared constants, types, and utilities
// used across the IPsec client.
package common

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// GenerateID generates a unique identifier for sessions and operations.
func GenerateID() string {
	return uuid.NewString()
}

// GetConfigDir returns the path to the application configuration directory.
// On Windows this is %APPDATA%\ipsec-client. It creates the directory if
// it doesn't exist.
func GetConfigDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", WrapError(err, "failed to get user config directory")
	}

	configDir := filepath.Join(baseDir, ConfigDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", WrapError(err, "failed to create config directory")
	}

	return configDir, nil
}

// GetDataDir returns the path to the application data directory.
// On Windows this is %LOCALAPPDATA%\ipsec-client.
func GetDataDir() (string, error) {
	baseDir, err := os.UserCacheDir()
	if err != nil {
		return "", WrapError(err, "failed to get user data directory")
	}

	dataDir := filepath.Join(baseDir, ConfigDirName)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", WrapError(err, "failed to create data directory")
	}

	return dataDir, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir ensures a directory exists, creating it if necessary.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

// StringInSlice checks if a string is in a slice.
func StringInSlice(s string, slice []string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

// MaskSecret returns a fixed-width mask for non-empty secrets so they can
// appear in log lines without leaking their length.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
