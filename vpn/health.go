// Package vpn provides VPN connection management functionality.
// This file contains the HealthChecker for monitoring connection health
// and implementing auto-reconnect functionality.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/ras"
)

// HealthState represents the current health state of a connection.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthDegraded
	HealthUnhealthy
)

// String returns a human-readable representation of the health state.
func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "Healthy"
	case HealthDegraded:
		return "Degraded"
	case HealthUnhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// HealthConfig holds configuration for the health checker.
type HealthConfig struct {
	// CheckInterval is how often to check connection health.
	CheckInterval time.Duration
	// FailureThreshold is how many consecutive failures before marking unhealthy.
	FailureThreshold int
	// AutoReconnect enables automatic reconnection on failure.
	AutoReconnect bool
	// ReconnectDelay is the delay before attempting to reconnect.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts is the maximum number of reconnection attempts (0 = unlimited).
	MaxReconnectAttempts int
	// TestHosts are probed over TCP; an empty list only checks the platform state.
	TestHosts []string
	// ProbeTimeout bounds each TCP probe.
	ProbeTimeout time.Duration
}

// DefaultHealthConfig returns sensible defaults for health checking.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		CheckInterval:        30 * time.Second,
		FailureThreshold:     3,
		AutoReconnect:        false,
		ReconnectDelay:       common.ReconnectDelay,
		MaxReconnectAttempts: 5,
		ProbeTimeout:         5 * time.Second,
	}
}

// HealthChecker monitors the connection of a Client.
type HealthChecker struct {
	mu                sync.RWMutex
	config            HealthConfig
	client            *Client
	running           bool
	stopChan          chan struct{}
	connectionHealth  map[string]*ConnectionHealth
	dial              func(network, address string, timeout time.Duration) (net.Conn, error)
	onHealthChange    func(entryName string, oldState, newState HealthState)
	onReconnecting    func(entryName string, attempt int)
	onReconnectFailed func(entryName string, err error)
}

// ConnectionHealth tracks the health of a specific connection.
type ConnectionHealth struct {
	EntryName         string
	State             HealthState
	LastCheck         time.Time
	LastSuccess       time.Time
	ConsecutiveFails  int
	ReconnectAttempts int
	Latency           time.Duration
	reconnecting      bool
}

// NewHealthChecker creates a new health checker for the given client.
func NewHealthChecker(client *Client, config HealthConfig) *HealthChecker {
	return &HealthChecker{
		config:           config,
		client:           client,
		stopChan:         make(chan struct{}),
		connectionHealth: make(map[string]*ConnectionHealth),
		dial:             net.DialTimeout,
	}
}

// SetOnHealthChange sets a callback for health state changes.
func (hc *HealthChecker) SetOnHealthChange(callback func(entryName string, oldState, newState HealthState)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.onHealthChange = callback
}

// SetOnReconnecting sets a callback for reconnection attempts.
func (hc *HealthChecker) SetOnReconnecting(callback func(entryName string, attempt int)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.onReconnecting = callback
}

// SetOnReconnectFailed sets a callback for failed reconnection.
func (hc *HealthChecker) SetOnReconnectFailed(callback func(entryName string, err error)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.onReconnectFailed = callback
}

// Start begins the health checking loop.
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	hc.stopChan = make(chan struct{})
	interval := hc.config.CheckInterval
	stop := hc.stopChan
	hc.mu.Unlock()

	common.LogInfo("Health checker started (interval: %v)", interval)

	go hc.runLoop(interval, stop)
}

// Stop stops the health checking loop.
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = false
	close(hc.stopChan)
	hc.mu.Unlock()

	common.LogInfo("Health checker stopped")
}

// IsRunning returns whether the health checker is currently running.
func (hc *HealthChecker) IsRunning() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.running
}

// GetHealth returns the current health state for a connection.
func (hc *HealthChecker) GetHealth(entryName string) (*ConnectionHealth, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	health, exists := hc.connectionHealth[entryName]
	if !exists {
		return nil, false
	}
	healthCopy := *health
	return &healthCopy, true
}

func (hc *HealthChecker) runLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			hc.CheckNow()
		}
	}
}

// CheckNow runs one health check of the client's connection.
func (hc *HealthChecker) CheckNow() {
	if hc.client == nil {
		return
	}
	conn := hc.client.Status()
	if conn.Status != StatusConnected {
		return
	}
	hc.checkConnection(conn)
}

// checkConnection performs a health check on a single connection.
func (hc *HealthChecker) checkConnection(conn Connection) {
	name := conn.EntryName

	hc.mu.Lock()
	health, exists := hc.connectionHealth[name]
	if !exists {
		health = &ConnectionHealth{
			EntryName: name,
			State:     HealthUnknown,
		}
		hc.connectionHealth[name] = health
	}
	hc.mu.Unlock()

	latency, err := hc.probe(conn.Handle)

	hc.mu.Lock()
	health.LastCheck = time.Now()
	oldState := health.State

	if err != nil {
		health.ConsecutiveFails++
		health.Latency = 0
		common.LogWarn("Health check failed for %s (attempt %d/%d): %v",
			name, health.ConsecutiveFails, hc.config.FailureThreshold, err)

		if health.ConsecutiveFails >= hc.config.FailureThreshold {
			health.State = HealthUnhealthy
		} else {
			health.State = HealthDegraded
		}
	} else {
		health.ConsecutiveFails = 0
		health.LastSuccess = time.Now()
		health.Latency = latency
		health.State = HealthHealthy
		health.ReconnectAttempts = 0
	}

	newState := health.State
	onChange := hc.onHealthChange
	reconnect := newState == HealthUnhealthy && hc.config.AutoReconnect && !health.reconnecting
	if reconnect {
		health.reconnecting = true
	}
	hc.mu.Unlock()

	if oldState != newState {
		common.LogInfo("Health state changed for %s: %s -> %s", name, oldState, newState)
		if onChange != nil {
			onChange(name, oldState, newState)
		}
	}
	if reconnect {
		go hc.attemptReconnect(conn, health)
	}
}

// probe checks the platform state of h and then reachability through the
// tunnel. It returns the probe latency.
func (hc *HealthChecker) probe(h ras.Handle) (time.Duration, error) {
	state, err := hc.client.API().Status(h)
	if err != nil {
		return 0, err
	}
	if state != ras.StateConnected {
		return 0, fmt.Errorf("%w: connection state is %s", common.ErrConnectionFailed, state)
	}

	hc.mu.RLock()
	hosts := hc.config.TestHosts
	timeout := hc.config.ProbeTimeout
	dial := hc.dial
	hc.mu.RUnlock()

	if len(hosts) == 0 {
		return 0, nil
	}
	for _, host := range hosts {
		start := time.Now()
		conn, err := dial("tcp", host, timeout)
		if err == nil {
			conn.Close()
			return time.Since(start), nil
		}
	}
	return 0, common.ErrConnectionFailed
}

// attemptReconnect redials a failed connection with the stored password.
func (hc *HealthChecker) attemptReconnect(conn Connection, health *ConnectionHealth) {
	name := conn.EntryName
	defer func() {
		hc.mu.Lock()
		health.reconnecting = false
		hc.mu.Unlock()
	}()

	for {
		hc.mu.Lock()
		cfg := hc.config
		if cfg.MaxReconnectAttempts > 0 && health.ReconnectAttempts >= cfg.MaxReconnectAttempts {
			hc.mu.Unlock()
			common.LogError("Max reconnect attempts reached for %s", name)
			hc.reconnectFailed(name, common.ErrConnectionFailed)
			return
		}
		health.ReconnectAttempts++
		attempt := health.ReconnectAttempts
		onReconnecting := hc.onReconnecting
		hc.mu.Unlock()

		common.LogInfo("Attempting reconnect for %s (attempt %d)", name, attempt)
		if onReconnecting != nil {
			onReconnecting(name, attempt)
		}

		time.Sleep(cfg.ReconnectDelay)

		// The connection might have been disconnected by the user meanwhile.
		current := hc.client.Status()
		if current.EntryName != name || current.Status == StatusDisconnected || current.Status == StatusDisconnecting {
			common.LogInfo("Connection was disconnected, skipping reconnect for %s", name)
			return
		}

		store := hc.client.Credentials()
		if store == nil {
			common.LogWarn("Cannot auto-reconnect %s: credentials not saved", name)
			hc.reconnectFailed(name, fmt.Errorf("%w: manual reconnect required", common.ErrCredentialsNotFound))
			return
		}
		password, err := store.Get(name)
		if err != nil {
			common.LogWarn("Cannot auto-reconnect %s: no saved credentials", name)
			hc.reconnectFailed(name, fmt.Errorf("no saved credentials for auto-reconnect: %w", err))
			return
		}

		ctx := context.Background()
		if err := hc.client.Disconnect(ctx); err != nil {
			common.LogError("Failed to disconnect before reconnect: %v", err)
		}

		endpoint, err := NewEndpoint(conn.Server)
		if err != nil {
			hc.reconnectFailed(name, err)
			return
		}
		err = hc.client.Connect(ctx, endpoint, ConnectParams{
			EntryName: name,
			Username:  conn.Username,
			Password:  password,
		})
		if err == nil {
			common.LogInfo("Reconnect successful for %s", name)
			return
		}

		common.LogError("Reconnect failed for %s: %v", name, err)
		if errors.Is(err, common.ErrAuthFailed) {
			hc.reconnectFailed(name, err)
			return
		}
	}
}

func (hc *HealthChecker) reconnectFailed(name string, err error) {
	hc.mu.RLock()
	cb := hc.onReconnectFailed
	hc.mu.RUnlock()
	if cb != nil {
		cb(name, err)
	}
}

// RemoveConnection removes health tracking for a disconnected connection.
func (hc *HealthChecker) RemoveConnection(entryName string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.connectionHealth, entryName)
}

// UpdateConfig updates the health checker configuration.
func (hc *HealthChecker) UpdateConfig(config HealthConfig) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.config = config
}

// Observe drops health tracking when a session ends.
func (hc *HealthChecker) Observe(ev Event) {
	if ev.Status == StatusDisconnected && ev.EntryName != "" {
		hc.RemoveConnection(ev.EntryName)
	}
}
