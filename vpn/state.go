package vpn

import (
	"time"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/ras"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrAlreadyConnected = common.ErrAlreadyConnected
	ErrNotConnected     = common.ErrNotConnected
	ErrConnectionFailed = common.ErrConnectionFailed
	ErrOperationPending = common.ErrOperationPending
)

// ConnectionStatus is the caller-facing state of the client.
type ConnectionStatus = common.ConnectionStatus

const (
	StatusDisconnected  = common.StatusDisconnected
	StatusConnecting    = common.StatusConnecting
	StatusConnected     = common.StatusConnected
	StatusDisconnecting = common.StatusDisconnecting
	StatusError         = common.StatusError
)

// Connection is a snapshot of the connection the client manages.
type Connection struct {
	// EntryName is the phonebook entry being dialed or connected.
	EntryName string
	// Server is the address the entry was dialed with.
	Server string
	// Username used for the dial.
	Username string
	// Handle is the platform handle, zero when there is none.
	Handle ras.Handle
	// Status is the current connection status.
	Status ConnectionStatus
	// State is the last dial state reported by the platform.
	State ras.ConnState
	// StartTime is when the dial was started.
	StartTime time.Time
	// ConnectedAt is when the dial completed.
	ConnectedAt time.Time
	// IPAddress is the address assigned to the client by the server.
	IPAddress string
	// ServerIPAddress is the server end of the PPP link.
	ServerIPAddress string
	// SessionID identifies the connected session.
	SessionID string
	// LastError contains the last error message if Status is StatusError.
	LastError string
}

// GetStatus returns the connection status.
func (c Connection) GetStatus() ConnectionStatus {
	return c.Status
}

// GetUptime returns how long the connection has been established.
func (c Connection) GetUptime() time.Duration {
	if c.Status != StatusConnected || c.ConnectedAt.IsZero() {
		return 0
	}
	return time.Since(c.ConnectedAt)
}
