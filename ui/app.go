package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/config"
	"github.com/BojanKomazec/IpSec/history"
	"github.com/BojanKomazec/IpSec/keyring"
	"github.com/BojanKomazec/IpSec/metrics"
	"github.com/BojanKomazec/IpSec/publicip"
	"github.com/BojanKomazec/IpSec/publish"
	"github.com/BojanKomazec/IpSec/ras"
	"github.com/BojanKomazec/IpSec/vpn"
)

// AppOptions configures an Application.
type AppOptions struct {
	// API is the platform binding; ras.New() when nil.
	API ras.API
	// Config is the loaded configuration; defaults when nil.
	Config  *config.Config
	Version string
	// ConfigDir holds profiles and the credentials fallback file.
	// Defaults to the user config directory.
	ConfigDir string
	// Credentials overrides the keyring store.
	Credentials common.CredentialStore
}

// Application ties the client to the configured integrations: profiles,
// credentials, history, metrics, MQTT publishing and health checking.
// Every front-end (command line, menu, tray) runs on one Application.
type Application struct {
	config    *config.Config
	version   string
	client    *vpn.Client
	profiles  *vpn.ProfileManager
	creds     common.CredentialStore
	health    *vpn.HealthChecker
	history   *history.Store
	collector *metrics.Collector
	metrics   *metrics.Server
	publisher *publish.Publisher

	mu        sync.Mutex
	notifiers []Notifier
	unsub     func()
	closeOnce sync.Once
}

// NewApplication builds the client and starts the enabled integrations.
// Optional integrations that fail to start are logged and skipped.
func NewApplication(opts AppOptions) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	api := opts.API
	if api == nil {
		api = ras.New()
	}

	dir := opts.ConfigDir
	if dir == "" {
		var err error
		if dir, err = common.GetConfigDir(); err != nil {
			return nil, err
		}
	}

	a := &Application{
		config:    cfg,
		version:   opts.Version,
		creds:     opts.Credentials,
		notifiers: []Notifier{logNotifier{}},
	}

	if a.creds == nil {
		store, err := keyring.New(keyring.Options{Dir: dir})
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		a.creds = store
	}

	profiles, err := vpn.NewProfileManager(dir)
	if err != nil {
		return nil, err
	}
	a.profiles = profiles

	scope, err := ras.ParseScope(cfg.PhonebookScope)
	if err != nil {
		return nil, err
	}

	a.collector = metrics.NewCollector()
	observers := []vpn.Observer{a.collector}

	if cfg.History.Enabled {
		if store, err := a.openHistory(); err != nil {
			common.LogWarn("Connection history disabled: %v", err)
		} else {
			a.history = store
			observers = append(observers, history.NewRecorder(store))
		}
	}

	if cfg.MQTT.Broker != "" {
		pub, err := publish.Connect(publish.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		})
		if err != nil {
			common.LogWarn("MQTT publishing disabled: %v", err)
		} else {
			a.publisher = pub
			observers = append(observers, pub)
		}
	}

	client, err := vpn.NewClient(api, vpn.Options{
		Scope:       scope,
		DialTimeout: cfg.DialTimeout,
		Credentials: a.creds,
		Observers:   observers,
	})
	if err != nil {
		a.closeIntegrations()
		return nil, err
	}
	a.client = client
	a.unsub = client.Subscribe(a.onEvent)

	a.setupHealthChecker()

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		if err := srv.Start(); err != nil {
			common.LogWarn("Metrics endpoint disabled: %v", err)
		} else {
			common.LogInfo("Serving metrics on http://%s%s", srv.Addr(), common.DefaultMetricsPath)
			a.metrics = srv
		}
	}

	return a, nil
}

func (a *Application) openHistory() (*history.Store, error) {
	path, err := a.config.HistoryPath()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if n, err := store.CloseOpen(ctx, "interrupted", time.Now()); err != nil {
		common.LogWarn("Failed to close stale history sessions: %v", err)
	} else if n > 0 {
		common.LogDebug("Closed %d stale history sessions", n)
	}
	return store, nil
}

// setupHealthChecker configures the health checker from the configuration.
func (a *Application) setupHealthChecker() {
	if a.config.HealthCheckInterval <= 0 {
		return
	}

	hcConfig := vpn.DefaultHealthConfig()
	hcConfig.CheckInterval = a.config.HealthCheckInterval
	hcConfig.AutoReconnect = a.config.AutoReconnect
	hcConfig.TestHosts = a.config.HealthCheckHosts

	hc := vpn.NewHealthChecker(a.client, hcConfig)
	hc.SetOnHealthChange(func(entryName string, oldState, newState vpn.HealthState) {
		a.collector.SetHealth(entryName, newState)
		switch newState {
		case vpn.HealthUnhealthy:
			a.notify(NotifyError(entryName, "connection is not responding"))
		case vpn.HealthHealthy:
			if oldState == vpn.HealthUnhealthy {
				a.notify(NotifyConnected(entryName+" (recovered)", ""))
			}
		}
	})
	hc.SetOnReconnecting(func(entryName string, attempt int) {
		a.notify(NotifyReconnecting(entryName, attempt))
	})
	hc.SetOnReconnectFailed(func(entryName string, err error) {
		a.notify(NotifyError(entryName, "reconnect failed: "+err.Error()))
	})

	a.health = hc
	a.client.Subscribe(hc.Observe)
	hc.Start()
}

// onEvent forwards client events to the notifiers.
func (a *Application) onEvent(ev vpn.Event) {
	if n, ok := notificationFor(ev); ok {
		if ev.Status == vpn.StatusConnected {
			n = NotifyConnected(ev.EntryName, a.client.Status().IPAddress)
		}
		a.notify(n)
	}
}

// AddNotifier registers an additional notification sink.
func (a *Application) AddNotifier(n Notifier) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notifiers = append(a.notifiers, n)
}

func (a *Application) notify(n Notification) {
	a.mu.Lock()
	notifiers := append([]Notifier(nil), a.notifiers...)
	a.mu.Unlock()
	for _, nt := range notifiers {
		nt.Notify(n)
	}
}

// Client returns the VPN client.
func (a *Application) Client() *vpn.Client { return a.client }

// Profiles returns the profile manager.
func (a *Application) Profiles() *vpn.ProfileManager { return a.profiles }

// Credentials returns the credential store.
func (a *Application) Credentials() common.CredentialStore { return a.creds }

// History returns the history store, or nil when history is disabled.
func (a *Application) History() *history.Store { return a.history }

// HealthChecker returns the health checker, or nil when disabled.
func (a *Application) HealthChecker() *vpn.HealthChecker { return a.health }

// Config returns the configuration.
func (a *Application) Config() *config.Config { return a.config }

// Version returns the application version.
func (a *Application) Version() string { return a.version }

// ConnectRequest describes a connect from any front-end. Empty fields
// are filled from the entry's profile, the configuration defaults and
// the credential store.
type ConnectRequest struct {
	EntryName string
	Server    string
	Username  string
	Password  string
	// SavePassword stores the password in the credential store.
	SavePassword bool
	// Prompt asks the user for a missing password. Optional.
	Prompt func(entryName, username string) (string, error)
}

// ErrPasswordRequired is returned when no password was given, stored or prompted.
var ErrPasswordRequired = errors.New("password required")

// Resolve fills the empty fields of req.
func (a *Application) Resolve(req ConnectRequest) (ConnectRequest, error) {
	req.EntryName = strings.TrimSpace(req.EntryName)
	if req.EntryName == "" {
		req.EntryName = a.config.DefaultEntry
	}
	if req.EntryName == "" {
		return req, fmt.Errorf("%w: entry name is required", common.ErrInvalidArgument)
	}

	profile, err := a.profiles.Get(req.EntryName)
	if err != nil && !errors.Is(err, vpn.ErrProfileNotFound) {
		return req, err
	}
	if req.Server == "" && profile != nil {
		req.Server = profile.Server
	}
	if req.Server == "" {
		req.Server = a.config.DefaultServer
	}
	if req.Username == "" && profile != nil {
		req.Username = profile.Username
	}
	if req.Username == "" {
		req.Username = a.config.DefaultUsername
	}

	if req.Password == "" {
		password, err := a.creds.Get(req.EntryName)
		switch {
		case err == nil:
			req.Password = password
		case !errors.Is(err, common.ErrCredentialsNotFound):
			common.LogWarn("Failed to read stored password of %s: %v", req.EntryName, err)
		}
	}
	if req.Password == "" && req.Prompt != nil {
		password, err := req.Prompt(req.EntryName, req.Username)
		if err != nil {
			return req, err
		}
		req.Password = password
	}
	if req.Password == "" {
		return req, fmt.Errorf("%w for %s", ErrPasswordRequired, req.EntryName)
	}
	return req, nil
}

// Connect resolves req, dials the entry and remembers its settings.
func (a *Application) Connect(ctx context.Context, req ConnectRequest) error {
	req, err := a.Resolve(req)
	if err != nil {
		return err
	}
	endpoint, err := vpn.NewEndpoint(req.Server)
	if err != nil {
		return err
	}

	err = a.client.Connect(ctx, endpoint, vpn.ConnectParams{
		EntryName: req.EntryName,
		Username:  req.Username,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}

	a.remember(req)
	return nil
}

// remember stores the dial settings of a successful connect.
func (a *Application) remember(req ConnectRequest) {
	save := req.SavePassword && a.config.SaveCredentials
	profile := &vpn.Profile{
		EntryName:    req.EntryName,
		Server:       req.Server,
		Username:     req.Username,
		SavePassword: save,
	}
	if existing, err := a.profiles.Get(req.EntryName); err == nil {
		profile.AutoConnect = existing.AutoConnect
		profile.SavePassword = save || existing.SavePassword
	}
	if err := a.profiles.Put(profile); err != nil {
		common.LogWarn("Failed to save profile of %s: %v", req.EntryName, err)
	}
	if err := a.profiles.MarkUsed(req.EntryName); err != nil {
		common.LogWarn("Failed to update profile of %s: %v", req.EntryName, err)
	}

	if save {
		if err := a.creds.Store(req.EntryName, req.Password); err != nil {
			common.LogWarn("Failed to save password of %s: %v", req.EntryName, err)
		}
	}
}

// RemoveEntry removes a phonebook entry together with its profile.
func (a *Application) RemoveEntry(name string) error {
	if err := a.client.RemoveEntry(name); err != nil {
		return err
	}
	if err := a.profiles.Remove(name); err != nil && !errors.Is(err, vpn.ErrProfileNotFound) {
		common.LogWarn("Failed to remove profile of %s: %v", name, err)
	}
	return nil
}

// ListEntries lists the phonebook entries.
func (a *Application) ListEntries() ([]string, error) {
	return a.client.ListEntries()
}

// CreateEntry creates an L2TP/IPsec entry.
func (a *Application) CreateEntry(name, presharedKey string) error {
	return a.client.CreateEntry(name, presharedKey)
}

// Disconnect hangs up the connection of the last dialed entry.
func (a *Application) Disconnect(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// PublicIP looks up the public address with the configured STUN server.
func (a *Application) PublicIP(ctx context.Context) (*publicip.Result, error) {
	return publicip.Discover(ctx, a.config.STUNServer)
}

// PublicIPString returns the public IP address as text.
func (a *Application) PublicIPString(ctx context.Context) (string, error) {
	res, err := a.PublicIP(ctx)
	if err != nil {
		return "", err
	}
	return res.IP.String(), nil
}

var _ MenuBackend = (*Application)(nil)

// AutoConnect connects the first profile marked for automatic connection.
func (a *Application) AutoConnect(ctx context.Context) error {
	for _, p := range a.profiles.List() {
		if !p.AutoConnect {
			continue
		}
		common.LogInfo("Auto-connecting to %s", p.EntryName)
		return a.Connect(ctx, ConnectRequest{EntryName: p.EntryName})
	}
	return nil
}

// Close stops the integrations and the client. An established
// connection stays up.
func (a *Application) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.health != nil {
			a.health.Stop()
		}
		if a.unsub != nil {
			a.unsub()
		}
		err = a.client.Close()
		a.closeIntegrations()
	})
	return err
}

func (a *Application) closeIntegrations() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metrics.Shutdown(ctx); err != nil {
			common.LogWarn("Failed to stop metrics endpoint: %v", err)
		}
		cancel()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			common.LogWarn("Failed to close history: %v", err)
		}
	}
}
