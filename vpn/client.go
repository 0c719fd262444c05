// Package vpn provides VPN connection management functionality.
// This file contains the Client type which manages phonebook entries and
// drives the asynchronous dial / hang-up state machine.
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

// Options configures a Client.
type Options struct {
	// Scope selects the phonebook. Defaults to the current user's.
	Scope ras.Scope
	// DialTimeout bounds a dial started with ConnectAsync. Zero disables it.
	DialTimeout time.Duration
	// Credentials, when set, receives dial passwords on request and is
	// cleaned up when an entry is removed.
	Credentials common.CredentialStore
	// Observers are notified of every state change, dial and session.
	Observers []Observer
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Scope:       ras.ScopeUser,
		DialTimeout: common.DialTimeout,
	}
}

// dialAttempt is one pending connect.
type dialAttempt struct {
	op       *Operation
	entry    string
	server   string
	username string
	started  time.Time
	handle   ras.Handle
	// reason overrides the dial error once the attempt was aborted.
	reason error
	hungUp bool
}

// Client manages L2TP/IPsec entries of one phonebook and at most one
// connection dialed through it.
// All methods are safe for concurrent use.
type Client struct {
	api       ras.API
	phonebook string
	opts      Options

	mu            sync.Mutex
	pending       *dialAttempt
	conn          Connection
	watcher       ras.Watcher
	disconnecting bool
	// hangUp is the disconnect running on conn.Handle, if any.
	hangUp    *Operation
	observers []Observer
	subs      map[int]func(Event)
	nextSub   int
	closed    bool
}

// NewClient resolves the phonebook for opts.Scope and returns a client
// bound to it.
func NewClient(api ras.API, opts Options) (*Client, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: nil ras API", common.ErrInvalidArgument)
	}
	path, err := api.PhonebookPath(opts.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve phonebook path: %w", err)
	}
	common.LogInfo("Phonebook path: %s", path)

	return &Client{
		api:       api,
		phonebook: path,
		opts:      opts,
		conn:      Connection{Status: StatusDisconnected, State: ras.StateDisconnected},
		observers: append([]Observer(nil), opts.Observers...),
		subs:      make(map[int]func(Event)),
	}, nil
}

// Phonebook returns the path of the phonebook the client works on.
func (c *Client) Phonebook() string {
	return c.phonebook
}

// API returns the platform binding the client uses.
func (c *Client) API() ras.API {
	return c.api
}

// Credentials returns the configured credential store, or nil.
func (c *Client) Credentials() common.CredentialStore {
	return c.opts.Credentials
}

// AddObserver registers an observer after construction.
func (c *Client) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Subscribe registers fn for every Event. The returned function removes it.
func (c *Client) Subscribe(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Status returns a snapshot of the managed connection.
func (c *Client) Status() Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// ListEntries returns the entry names of the phonebook.
func (c *Client) ListEntries() ([]string, error) {
	names, err := c.api.Entries(c.phonebook)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	common.LogInfo("VPN connections:")
	for _, name := range names {
		common.LogInfo("  %s", name)
	}
	return names, nil
}

// HasEntry reports whether name exists in the phonebook.
func (c *Client) HasEntry(name string) (bool, error) {
	names, err := c.api.Entries(c.phonebook)
	if err != nil {
		return false, fmt.Errorf("failed to list entries: %w", err)
	}
	return common.StringInSlice(name, names), nil
}

// CreateEntry adds an L2TP/IPsec entry named name and stores its client
// pre-shared key.
func (c *Client) CreateEntry(name, presharedKey string) error {
	if name == "" {
		return fmt.Errorf("%w: empty connection name", common.ErrInvalidArgument)
	}
	if presharedKey == "" {
		return fmt.Errorf("%w: empty pre-shared key", common.ErrInvalidArgument)
	}

	if err := c.api.ValidateEntryName(c.phonebook, name); err != nil {
		return fmt.Errorf("cannot create entry %q: %w", name, err)
	}

	if err := c.api.CreateEntry(c.phonebook, NewL2TPEntry(name)); err != nil {
		return fmt.Errorf("failed to create entry %q: %w", name, err)
	}

	// The key can only be attached once the entry is in the phonebook.
	if err := c.api.SetPresharedKey(c.phonebook, name, presharedKey); err != nil {
		if delErr := c.api.DeleteEntry(c.phonebook, name); delErr != nil {
			common.LogWarn("Failed to roll back entry %s: %v", name, delErr)
		}
		return fmt.Errorf("failed to set pre-shared key of %q: %w", name, err)
	}

	common.LogInfo("Created VPN entry %s", name)
	return nil
}

// RemoveEntry deletes name from the phonebook. It refuses while the
// client is dialing or connected through that entry.
func (c *Client) RemoveEntry(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty connection name", common.ErrInvalidArgument)
	}

	c.mu.Lock()
	busy := (c.pending != nil && c.pending.entry == name) ||
		(c.conn.EntryName == name && c.conn.Handle != 0)
	c.mu.Unlock()
	if busy {
		return fmt.Errorf("cannot remove entry %q: %w", name, ErrAlreadyConnected)
	}

	exists, err := c.HasEntry(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("cannot remove entry %q: %w", name, common.ErrEntryNotFound)
	}

	if err := c.api.DeleteEntry(c.phonebook, name); err != nil {
		return fmt.Errorf("failed to remove entry %q: %w", name, err)
	}

	if c.opts.Credentials != nil {
		if err := c.opts.Credentials.Delete(name); err != nil && !errors.Is(err, common.ErrCredentialsNotFound) {
			common.LogWarn("Failed to delete stored credentials of %s: %v", name, err)
		}
	}

	common.LogInfo("Removed VPN entry %s", name)
	return nil
}

// ConnectAsync starts dialing params.EntryName against the endpoint
// address and returns the pending operation. The dial is hung up if ctx
// is done or the dial timeout elapses before it completes.
func (c *Client) ConnectAsync(ctx context.Context, endpoint Endpoint, params ConnectParams) (*Operation, error) {
	if endpoint == nil || endpoint.IPAddress() == "" {
		return nil, fmt.Errorf("%w: empty server address", common.ErrInvalidArgument)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := c.checkIdle(); err != nil {
		return nil, err
	}

	exists, err := c.HasEntry(params.EntryName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("cannot connect %q: %w", params.EntryName, common.ErrEntryNotFound)
	}

	c.mu.Lock()
	if err := c.idleLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	attempt := &dialAttempt{
		op:       newOperation(OpConnect),
		entry:    params.EntryName,
		server:   endpoint.IPAddress(),
		username: params.Username,
		started:  time.Now(),
	}
	c.pending = attempt
	c.conn = Connection{
		EntryName: attempt.entry,
		Server:    attempt.server,
		Username:  attempt.username,
		Status:    StatusConnecting,
		State:     ras.StateOpenPort,
		StartTime: attempt.started,
	}
	ev := c.eventLocked(nil)
	c.mu.Unlock()

	common.LogInfo("Connecting %s to %s as %s", attempt.entry, attempt.server, attempt.username)
	c.emit(ev)

	h, err := c.api.Dial(ras.DialParams{
		Phonebook:   c.phonebook,
		EntryName:   params.EntryName,
		PhoneNumber: attempt.server,
		Username:    params.Username,
		Password:    params.Password,
	}, func(ev ras.DialEvent) {
		c.onDialEvent(attempt, ev)
	})
	if err != nil {
		c.failDial(attempt, err)
		return nil, fmt.Errorf("failed to dial %q: %w", params.EntryName, err)
	}

	c.mu.Lock()
	if attempt.handle == 0 {
		attempt.handle = h
	}
	if c.pending == attempt {
		c.conn.Handle = attempt.handle
	}
	c.mu.Unlock()

	go c.superviseDial(ctx, attempt)
	return attempt.op, nil
}

// Connect dials and waits for the outcome.
func (c *Client) Connect(ctx context.Context, endpoint Endpoint, params ConnectParams) error {
	op, err := c.ConnectAsync(ctx, endpoint, params)
	if err != nil {
		return err
	}
	<-op.Done()
	return op.Err()
}

func (c *Client) checkIdle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idleLocked()
}

func (c *Client) idleLocked() error {
	switch {
	case c.closed:
		return common.ErrClosed
	case c.pending != nil:
		return ErrOperationPending
	case c.conn.Handle != 0:
		// A watcher error leaves the handle live until it is hung up.
		return fmt.Errorf("%q is connected: %w", c.conn.EntryName, ErrAlreadyConnected)
	}
	return nil
}

// superviseDial hangs the dial up when ctx is done or the timeout elapses.
func (c *Client) superviseDial(ctx context.Context, attempt *dialAttempt) {
	var timeout <-chan time.Time
	if c.opts.DialTimeout > 0 {
		timer := time.NewTimer(c.opts.DialTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-attempt.op.Done():
	case <-timeout:
		common.LogWarn("Dial of %s timed out after %v", attempt.entry, c.opts.DialTimeout)
		c.abortDial(attempt, common.ErrTimeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.abortDial(attempt, common.ErrTimeout)
		} else {
			c.abortDial(attempt, common.ErrCancelled)
		}
	}
}

// abortDial hangs up a pending dial and resolves it with reason.
func (c *Client) abortDial(attempt *dialAttempt, reason error) {
	c.mu.Lock()
	if c.pending != attempt {
		c.mu.Unlock()
		return
	}
	if attempt.reason == nil {
		attempt.reason = reason
	}
	h := attempt.handle
	attempt.hungUp = h != 0
	c.mu.Unlock()

	if h != 0 {
		if err := c.api.HangUp(h); err != nil {
			common.LogWarn("Failed to hang up %s: %v", attempt.entry, err)
		}
	}
	c.failDial(attempt, reason)
}

// onDialEvent runs on the platform notification thread and must not block.
func (c *Client) onDialEvent(attempt *dialAttempt, ev ras.DialEvent) {
	c.mu.Lock()
	if c.pending != attempt {
		c.mu.Unlock()
		return
	}
	if ev.Handle != 0 {
		attempt.handle = ev.Handle
		c.conn.Handle = ev.Handle
	}

	switch {
	case ev.Err != nil:
		c.mu.Unlock()
		go c.failDial(attempt, ev.Err)
	case ev.State == ras.StateConnected:
		c.mu.Unlock()
		go c.completeDial(attempt)
	case ev.State == ras.StateDisconnected:
		c.mu.Unlock()
		go c.failDial(attempt, &ras.Error{Op: "RasDial", Code: ras.ErrorNoConnection})
	case ev.State.Paused():
		c.mu.Unlock()
		go c.abortDial(attempt, fmt.Errorf("%w: dial paused in state %s", ErrConnectionFailed, ev.State))
	default:
		c.conn.State = ev.State
		out := c.eventLocked(nil)
		c.mu.Unlock()

		common.LogInfo("State changed to: %s", ev.State)
		c.emit(out)
	}
}

// failDial resolves a pending dial with an error.
func (c *Client) failDial(attempt *dialAttempt, dialErr error) {
	c.mu.Lock()
	if c.pending != attempt {
		c.mu.Unlock()
		return
	}
	c.pending = nil

	var err error
	if attempt.reason != nil {
		err = fmt.Errorf("connect %q: %w", attempt.entry, attempt.reason)
	} else {
		err = dialError(attempt.entry, dialErr)
	}
	h := attempt.handle
	hangUp := h != 0 && !attempt.hungUp
	attempt.hungUp = true

	if errors.Is(err, common.ErrCancelled) {
		c.conn.Status = StatusDisconnected
		c.conn.State = ras.StateDisconnected
		c.conn.LastError = ""
	} else {
		c.conn.Status = StatusError
		c.conn.LastError = err.Error()
	}
	c.conn.Handle = 0
	ev := c.eventLocked(err)
	observers := c.observersLocked()
	c.mu.Unlock()

	// The platform keeps the port until the failed handle is hung up.
	if hangUp {
		if err := c.api.HangUp(h); err != nil {
			common.LogWarn("Failed to release handle of %s: %v", attempt.entry, err)
		}
	}

	common.LogError("Connection to %s failed: %v", attempt.entry, err)
	attempt.op.resolve(err)

	elapsed := time.Since(attempt.started)
	for _, o := range observers {
		o.OnDialResult(attempt.entry, dialResult(err), elapsed, err)
	}
	c.emit(ev)
}

// completeDial finishes a dial that reached Connected: it reads the IP
// projection and starts watching the connection.
func (c *Client) completeDial(attempt *dialAttempt) {
	c.mu.Lock()
	if c.pending != attempt {
		c.mu.Unlock()
		return
	}
	h := attempt.handle
	c.mu.Unlock()

	info, err := c.api.IPProjection(h)
	if err != nil {
		common.LogWarn("Failed to read IP projection of %s: %v", attempt.entry, err)
		info = &ras.IPInfo{}
	}

	w, err := c.api.Watch(h)
	if err != nil {
		c.abortDial(attempt, fmt.Errorf("failed to watch %q: %w", attempt.entry, err))
		return
	}

	c.mu.Lock()
	if c.pending != attempt {
		c.mu.Unlock()
		w.Close()
		return
	}
	c.pending = nil
	prev := c.watcher
	c.watcher = w
	c.disconnecting = false
	now := time.Now()
	c.conn.Handle = h
	c.conn.Status = StatusConnected
	c.conn.State = ras.StateConnected
	c.conn.ConnectedAt = now
	c.conn.SessionID = attempt.op.ID()
	c.conn.LastError = ""
	c.conn.IPAddress = ipString(info.IPAddress)
	c.conn.ServerIPAddress = ipString(info.ServerIPAddress)
	session := Session{
		ID:        attempt.op.ID(),
		EntryName: attempt.entry,
		Server:    attempt.server,
		Username:  attempt.username,
		StartedAt: now,
		LocalIP:   c.conn.IPAddress,
		ServerIP:  c.conn.ServerIPAddress,
	}
	ev := c.eventLocked(nil)
	observers := c.observersLocked()
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	go c.watch(w, h)

	common.LogInfo("Connected to %s (client IP %s, server IP %s)", attempt.entry, session.LocalIP, session.ServerIP)
	attempt.op.resolve(nil)

	elapsed := time.Since(attempt.started)
	for _, o := range observers {
		o.OnDialResult(attempt.entry, ResultConnected, elapsed, nil)
		o.OnSessionStart(session)
	}
	c.emit(ev)
}

// DisconnectAsync terminates the connection of the last dialed entry.
func (c *Client) DisconnectAsync(ctx context.Context) (*Operation, error) {
	c.mu.Lock()
	name := c.conn.EntryName
	c.mu.Unlock()
	return c.DisconnectEntryAsync(ctx, name)
}

// Disconnect terminates the connection of the last dialed entry and
// waits until the handle is released.
func (c *Client) Disconnect(ctx context.Context) error {
	op, err := c.DisconnectAsync(ctx)
	if err != nil {
		return err
	}
	return op.Wait(ctx)
}

// DisconnectEntry terminates the live connection of name, whether or not
// it was dialed by this client.
func (c *Client) DisconnectEntry(ctx context.Context, name string) error {
	op, err := c.DisconnectEntryAsync(ctx, name)
	if err != nil {
		return err
	}
	return op.Wait(ctx)
}

// DisconnectEntryAsync hangs up the live connection of name. A pending
// dial of name is cancelled first. Without a live connection the
// returned operation is already resolved.
func (c *Client) DisconnectEntryAsync(ctx context.Context, name string) (*Operation, error) {
	op := newOperation(OpDisconnect)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, common.ErrClosed
	}

	if attempt := c.pending; attempt != nil && (name == "" || name == attempt.entry) {
		c.mu.Unlock()
		common.LogInfo("Cancelling pending dial of %s", attempt.entry)
		go func() {
			c.abortDial(attempt, common.ErrCancelled)
			op.resolve(nil)
		}()
		return op, nil
	}

	if name == "" {
		c.mu.Unlock()
		common.LogInfo("No connection to disconnect")
		op.resolve(nil)
		return op, nil
	}

	if c.conn.EntryName == name && c.conn.Handle != 0 && c.hangUp != nil {
		running := c.hangUp
		c.mu.Unlock()
		common.LogDebug("Disconnect of %s already in progress", name)
		return running, nil
	}

	own := c.conn.EntryName == name && c.conn.Handle != 0
	var h ras.Handle
	var ev Event
	prevStatus := c.conn.Status
	if own {
		h = c.conn.Handle
		c.disconnecting = true
		c.hangUp = op
		c.conn.Status = StatusDisconnecting
		ev = c.eventLocked(nil)
	}
	c.mu.Unlock()

	if own {
		c.emit(ev)
	} else {
		active, err := ras.FindActive(c.api, c.phonebook, name)
		if err != nil {
			op.resolve(fmt.Errorf("failed to find connection %q: %w", name, err))
			return op, nil
		}
		if active == nil {
			common.LogInfo("No active connection for %s", name)
			op.resolve(nil)
			return op, nil
		}
		h = active.Handle
	}

	common.LogInfo("Disconnecting %s", name)
	go func() {
		err := c.api.HangUp(h)
		if err != nil {
			c.mu.Lock()
			if c.conn.Handle == h && c.conn.Status == StatusDisconnecting {
				c.conn.Status = prevStatus
				c.disconnecting = false
			}
			c.mu.Unlock()
			err = fmt.Errorf("failed to disconnect %q: %w", name, err)
		} else {
			c.connectionClosed(h)
		}
		if own {
			c.mu.Lock()
			if c.hangUp == op {
				c.hangUp = nil
			}
			c.mu.Unlock()
		}
		op.resolve(err)
	}()
	return op, nil
}

// watch consumes watcher events of an established connection.
func (c *Client) watch(w ras.Watcher, h ras.Handle) {
	for ev := range w.Events() {
		switch ev.Kind {
		case ras.WatchConnected:
			c.mu.Lock()
			if c.conn.Handle == h && c.conn.Status != StatusDisconnecting {
				c.conn.Status = StatusConnected
				c.conn.State = ras.StateConnected
			}
			c.mu.Unlock()
			common.LogDebug("Watcher reported %s connected", c.Status().EntryName)
		case ras.WatchDisconnected:
			c.connectionClosed(h)
			return
		case ras.WatchError:
			c.mu.Lock()
			if c.conn.Handle != h {
				c.mu.Unlock()
				continue
			}
			c.conn.Status = StatusError
			c.conn.LastError = ev.Err.Error()
			out := c.eventLocked(ev.Err)
			c.mu.Unlock()

			common.LogError("Connection watcher error: %v", ev.Err)
			c.emit(out)
		}
	}
}

// connectionClosed records that the connection on h is gone. It is safe
// to call from both the hang-up path and the watcher.
func (c *Client) connectionClosed(h ras.Handle) {
	c.mu.Lock()
	if c.conn.Handle != h || h == 0 {
		c.mu.Unlock()
		return
	}
	w := c.watcher
	c.watcher = nil
	requested := c.disconnecting
	c.disconnecting = false
	id := c.conn.SessionID
	entry := c.conn.EntryName
	c.conn.Handle = 0
	c.conn.Status = StatusDisconnected
	c.conn.State = ras.StateDisconnected
	c.conn.SessionID = ""

	result := ResultDisconnected
	var err error
	if !requested {
		result = ResultDropped
		err = common.ErrConnectionDropped
		c.conn.LastError = err.Error()
	}
	ev := c.eventLocked(err)
	observers := c.observersLocked()
	c.mu.Unlock()

	if w != nil {
		w.Close()
	}

	if requested {
		common.LogInfo("Disconnected from %s", entry)
	} else {
		common.LogWarn("Connection to %s was dropped", entry)
	}
	for _, o := range observers {
		o.OnSessionEnd(id, result, err)
	}
	c.emit(ev)
}

// Close stops watching and cancels a pending dial. An established
// connection is left up. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	attempt := c.pending
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	if attempt != nil {
		c.abortDial(attempt, common.ErrCancelled)
	}
	if w != nil {
		w.Close()
	}
	return nil
}

func (c *Client) eventLocked(err error) Event {
	return Event{
		EntryName: c.conn.EntryName,
		State:     c.conn.State,
		Status:    c.conn.Status,
		Err:       err,
		Time:      time.Now(),
	}
}

func (c *Client) observersLocked() []Observer {
	return append([]Observer(nil), c.observers...)
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	observers := c.observersLocked()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o.OnStateChange(ev)
	}
	for _, fn := range subs {
		fn(ev)
	}
}

// dialError wraps a platform dial error with the client's sentinels.
func dialError(entry string, err error) error {
	if errors.Is(err, common.ErrCancelled) || errors.Is(err, ErrConnectionFailed) {
		return fmt.Errorf("connect %q: %w", entry, err)
	}
	return fmt.Errorf("connect %q: %w: %w", entry, ErrConnectionFailed, err)
}

func dialResult(err error) string {
	switch {
	case err == nil:
		return ResultConnected
	case errors.Is(err, common.ErrTimeout):
		return ResultTimeout
	case errors.Is(err, common.ErrCancelled):
		return ResultCancelled
	case errors.Is(err, common.ErrAuthFailed):
		return ResultAuthFailed
	default:
		return ResultFailed
	}
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
