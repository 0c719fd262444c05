package vpn

import (
	"time"

	"github.com/BojanKomazec/IpSec/ras"
)

// Dial results reported to observers.
const (
	ResultConnected    = "connected"
	ResultFailed       = "failed"
	ResultAuthFailed   = "auth_failed"
	ResultCancelled    = "cancelled"
	ResultTimeout      = "timeout"
	ResultDisconnected = "disconnected"
	ResultDropped      = "dropped"
)

// Event describes a state change of the managed connection.
type Event struct {
	EntryName string
	State     ras.ConnState
	Status    ConnectionStatus
	Err       error
	Time      time.Time
}

// Session describes an established connection.
type Session struct {
	ID        string
	EntryName string
	Server    string
	Username  string
	StartedAt time.Time
	LocalIP   string
	ServerIP  string
}

// Observer receives the client's lifecycle notifications. Methods are
// called synchronously from the client's goroutines and should return
// quickly.
type Observer interface {
	OnStateChange(ev Event)
	// OnDialResult reports every finished dial; err is nil on success.
	OnDialResult(entryName, result string, elapsed time.Duration, err error)
	OnSessionStart(s Session)
	OnSessionEnd(id, result string, err error)
}

// NopObserver implements Observer with no-ops. Embed it to implement
// only some of the hooks.
type NopObserver struct{}

func (NopObserver) OnStateChange(Event)                               {}
func (NopObserver) OnDialResult(string, string, time.Duration, error) {}
func (NopObserver) OnSessionStart(Session)                            {}
func (NopObserver) OnSessionEnd(string, string, error)                {}
