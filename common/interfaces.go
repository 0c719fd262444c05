// Package common provides shared constants, types, and utilities
// used across the IPsec client.
package common

// ConnectionStatus represents the state of a VPN connection as seen by
// callers of the client, independent of the finer-grained dial states
// reported by the platform.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusDisconnecting
	StatusError
)

// String returns a human-readable status string.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// CredentialStore defines the interface for credential storage.
// Implementations may use the system credential manager, encrypted files, etc.
type CredentialStore interface {
	// Store saves the password for a phonebook entry.
	Store(entryName, password string) error
	// Get retrieves the password for a phonebook entry.
	Get(entryName string) (string, error)
	// Delete removes the password for a phonebook entry.
	Delete(entryName string) error
	// Clear removes all stored credentials.
	Clear() error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
