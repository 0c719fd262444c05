package ras

import (
	"fmt"
	"net"
)

// Scope selects which phonebook file an operation targets.
type Scope int

const (
	// ScopeUser is the phonebook of the current user.
	ScopeUser Scope = iota
	// ScopeAllUsers is the machine-wide phonebook. Writing to it requires
	// administrative privileges.
	ScopeAllUsers
)

// String returns the configuration name of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeUser:
		return "user"
	case ScopeAllUsers:
		return "all-users"
	default:
		return "unknown"
	}
}

// ParseScope parses a configuration value into a Scope.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "user":
		return ScopeUser, nil
	case "all-users", "allusers", "all":
		return ScopeAllUsers, nil
	default:
		return ScopeUser, fmt.Errorf("unknown phonebook scope %q", s)
	}
}

// Handle identifies a RAS connection. The zero Handle refers to no connection.
type Handle uintptr

// ConnState mirrors RASCONNSTATE.
type ConnState uint32

const (
	StateOpenPort ConnState = iota
	StatePortOpened
	StateConnectDevice
	StateDeviceConnected
	StateAllDevicesConnected
	StateAuthenticate
	StateAuthNotify
	StateAuthRetry
	StateAuthCallback
	StateAuthChangePassword
	StateAuthProject
	StateAuthLinkSpeed
	StateAuthAck
	StateReAuthenticate
	StateAuthenticated
	StatePrepareForCallback
	StateWaitForModemReset
	StateWaitForCallback
	StateProjected
	StateStartAuthentication
	StateCallbackComplete
	StateLogonNetwork
	StateSubEntryConnected
	StateSubEntryDisconnected
	StateApplySettings
)

const (
	StateInteractive ConnState = 0x1000 + iota
	StateRetryAuthentication
	StateCallbackSetByCaller
	StatePasswordExpired
	StateInvokeEapUI
)

const (
	StateConnected ConnState = 0x2000 + iota
	StateDisconnected
)

var stateNames = map[ConnState]string{
	StateOpenPort:             "OpenPort",
	StatePortOpened:           "PortOpened",
	StateConnectDevice:        "ConnectDevice",
	StateDeviceConnected:      "DeviceConnected",
	StateAllDevicesConnected:  "AllDevicesConnected",
	StateAuthenticate:         "Authenticate",
	StateAuthNotify:           "AuthNotify",
	StateAuthRetry:            "AuthRetry",
	StateAuthCallback:         "AuthCallback",
	StateAuthChangePassword:   "AuthChangePassword",
	StateAuthProject:          "AuthProject",
	StateAuthLinkSpeed:        "AuthLinkSpeed",
	StateAuthAck:              "AuthAck",
	StateReAuthenticate:       "ReAuthenticate",
	StateAuthenticated:        "Authenticated",
	StatePrepareForCallback:   "PrepareForCallback",
	StateWaitForModemReset:    "WaitForModemReset",
	StateWaitForCallback:      "WaitForCallback",
	StateProjected:            "Projected",
	StateStartAuthentication:  "StartAuthentication",
	StateCallbackComplete:     "CallbackComplete",
	StateLogonNetwork:         "LogonNetwork",
	StateSubEntryConnected:    "SubEntryConnected",
	StateSubEntryDisconnected: "SubEntryDisconnected",
	StateApplySettings:        "ApplySettings",
	StateInteractive:          "Interactive",
	StateRetryAuthentication:  "RetryAuthentication",
	StateCallbackSetByCaller:  "CallbackSetByCaller",
	StatePasswordExpired:      "PasswordExpired",
	StateInvokeEapUI:          "InvokeEapUI",
	StateConnected:            "Connected",
	StateDisconnected:         "Disconnected",
}

// String returns the RASCONNSTATE name without the RASCS_ prefix.
func (s ConnState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConnState(%#x)", uint32(s))
}

// Terminal reports whether no further dial notifications follow s.
func (s ConnState) Terminal() bool {
	return s == StateConnected || s == StateDisconnected
}

// Paused reports whether s is one of the paused states that require
// caller interaction. The client never enables paused states, so seeing
// one is treated as a failure.
func (s ConnState) Paused() bool {
	return s >= StateInteractive && s < StateConnected
}

// VPNStrategy mirrors the VS_* constants of RASENTRY.dwVpnStrategy.
type VPNStrategy uint32

const (
	StrategyDefault VPNStrategy = iota
	StrategyPptpOnly
	StrategyPptpFirst
	StrategyL2tpOnly
	StrategyL2tpFirst
	StrategySstpOnly
	StrategySstpFirst
	StrategyIkev2Only
	StrategyIkev2First
)

// EncryptionType mirrors the ET_* constants of RASENTRY.dwEncryptionType.
type EncryptionType uint32

const (
	EncryptionNone EncryptionType = iota
	EncryptionRequire
	EncryptionRequireMax
	EncryptionOptional
)

// DeviceTypeVPN is the RASDT_Vpn device type.
const DeviceTypeVPN = "vpn"

// DeviceNameL2TP is the miniport used for L2TP entries.
const DeviceNameL2TP = "WAN Miniport (L2TP)"

// EntryOptions holds the RASEO/RASEO2 switches the client cares about.
type EntryOptions struct {
	RequireDataEncryption    bool
	RequireEncryptedPassword bool
	UsePreSharedKey          bool
	UseLogonCredentials      bool
	RequireMSChap2           bool
	RemoteDefaultGateway     bool
	SecureFileAndPrint       bool
	SecureClientForMSNet     bool
	ReconnectIfDropped       bool
}

// Entry describes a phonebook entry to be written with CreateEntry.
type Entry struct {
	Name        string
	PhoneNumber string
	DeviceName  string
	DeviceType  string
	Strategy    VPNStrategy
	Encryption  EncryptionType
	Options     EntryOptions
}

// DialParams holds the arguments of a single dial.
type DialParams struct {
	Phonebook string
	EntryName string
	// PhoneNumber overrides the server address stored in the entry when set.
	PhoneNumber string
	Username    string
	Password    string
	Domain      string
}

// DialEvent is delivered for every state the dial passes through. The
// final event either has State == StateConnected or a non-nil Err.
type DialEvent struct {
	Handle Handle
	State  ConnState
	Err    error
}

// DialNotifier receives dial events. It is invoked from a platform thread
// and must not block.
type DialNotifier func(DialEvent)

// ActiveConnection describes a connection reported by the platform.
type ActiveConnection struct {
	Handle     Handle
	EntryName  string
	Phonebook  string
	DeviceType string
	DeviceName string
}

// IPInfo is the PPP IP projection of an established connection.
type IPInfo struct {
	IPAddress       net.IP
	ServerIPAddress net.IP
}

// WatchEventKind classifies events delivered by a Watcher.
type WatchEventKind int

const (
	WatchConnected WatchEventKind = iota
	WatchDisconnected
	WatchError
)

// String returns a human-readable name of the event kind.
func (k WatchEventKind) String() string {
	switch k {
	case WatchConnected:
		return "Connected"
	case WatchDisconnected:
		return "Disconnected"
	case WatchError:
		return "Error"
	default:
		return "Unknown"
	}
}

// WatchEvent is a post-connect state change of a watched connection.
type WatchEvent struct {
	Kind   WatchEventKind
	Handle Handle
	Err    error
}
