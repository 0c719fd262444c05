// Package rastest provides an in-memory ras.API for tests.
package rastest

import (
	"net"
	"strings"
	"sync"

	"github.com/BojanKomazec/IpSec/ras"
)

// DefaultPhonebook is the path returned for ras.ScopeUser.
const DefaultPhonebook = `C:\Users\test\AppData\Roaming\Microsoft\Network\Connections\Pbk\rasphone.pbk`

// AllUsersPhonebook is the path returned for ras.ScopeAllUsers.
const AllUsersPhonebook = `C:\ProgramData\Microsoft\Network\Connections\Pbk\rasphone.pbk`

// DialScript controls how the next dial behaves.
type DialScript struct {
	// States are reported in order before the final event.
	States []ras.ConnState
	// Err, when set, completes the dial with this error instead of Connected.
	Err error
	// Block holds the dial after States until Release or HangUp is called.
	Block bool
	// DialErr makes Dial itself fail synchronously.
	DialErr error
}

// Fake is a scriptable ras.API. The zero value is not usable; use New.
type Fake struct {
	mu         sync.Mutex
	entries    map[string][]*ras.Entry
	psks       map[string]string
	conns      map[ras.Handle]*fakeConn
	nextH      ras.Handle
	scripts    []DialScript
	dials      []ras.DialParams
	hangUps    []ras.Handle
	IP         net.IP
	ServerIP   net.IP
	failOps    map[string]error
	watchFail  error
	hangUpGate chan struct{}
}

type fakeConn struct {
	params  ras.DialParams
	state   ras.ConnState
	notify  ras.DialNotifier
	release chan struct{}
	once    sync.Once
	watcher *fakeWatcher
	done    bool
}

func (c *fakeConn) unblock() {
	if c.release != nil {
		c.once.Do(func() { close(c.release) })
	}
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		entries:  make(map[string][]*ras.Entry),
		psks:     make(map[string]string),
		conns:    make(map[ras.Handle]*fakeConn),
		failOps:  make(map[string]error),
		IP:       net.ParseIP("10.0.0.2"),
		ServerIP: net.ParseIP("10.0.0.1"),
	}
}

// Script queues dial behaviours consumed by subsequent Dial calls. Without
// a script a dial connects immediately.
func (f *Fake) Script(s ...DialScript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, s...)
}

// Fail makes the named API method return err until cleared with a nil err.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failOps, op)
		return
	}
	f.failOps[op] = err
}

// HoldHangUps makes HangUp block until the returned release is called.
func (f *Fake) HoldHangUps() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.hangUpGate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.hangUpGate == gate {
				f.hangUpGate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// AddEntry seeds phonebook with an entry.
func (f *Fake) AddEntry(phonebook string, e *ras.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key(phonebook)] = append(f.entries[key(phonebook)], e)
}

// Entry returns the stored entry or nil.
func (f *Fake) Entry(phonebook, name string) *ras.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries[key(phonebook)] {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// PresharedKey returns the key stored for an entry.
func (f *Fake) PresharedKey(phonebook, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.psks[key(phonebook)+"|"+name]
}

// Dials returns the parameters of every dial so far.
func (f *Fake) Dials() []ras.DialParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ras.DialParams(nil), f.dials...)
}

// HangUps returns the handles hung up so far.
func (f *Fake) HangUps() []ras.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ras.Handle(nil), f.hangUps...)
}

// Release completes a blocked dial.
func (f *Fake) Release(h ras.Handle) {
	f.mu.Lock()
	c, ok := f.conns[h]
	f.mu.Unlock()
	if ok {
		c.unblock()
	}
}

// Drop simulates the remote end terminating an established connection.
func (f *Fake) Drop(h ras.Handle) {
	f.mu.Lock()
	c, ok := f.conns[h]
	if ok {
		delete(f.conns, h)
	}
	f.mu.Unlock()
	if ok && c.watcher != nil {
		c.watcher.emit(ras.WatchEvent{Kind: ras.WatchDisconnected, Handle: h})
		c.watcher.finish()
	}
}

// WatchError delivers an error event to the watcher of h.
func (f *Fake) WatchError(h ras.Handle, err error) {
	f.mu.Lock()
	c, ok := f.conns[h]
	f.mu.Unlock()
	if ok && c.watcher != nil {
		c.watcher.emit(ras.WatchEvent{Kind: ras.WatchError, Handle: h, Err: err})
	}
}

// FailWatch makes the next Watch calls fail with err.
func (f *Fake) FailWatch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchFail = err
}

// Connect registers an already established connection, as if dialed by
// another process.
func (f *Fake) Connect(phonebook, entryName string) ras.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextH++
	h := f.nextH
	f.conns[h] = &fakeConn{
		params: ras.DialParams{Phonebook: phonebook, EntryName: entryName},
		state:  ras.StateConnected,
		done:   true,
	}
	return h
}

func (f *Fake) fail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failOps[op]
}

func (f *Fake) PhonebookPath(scope ras.Scope) (string, error) {
	if err := f.fail("PhonebookPath"); err != nil {
		return "", err
	}
	switch scope {
	case ras.ScopeUser:
		return DefaultPhonebook, nil
	case ras.ScopeAllUsers:
		return AllUsersPhonebook, nil
	}
	return "", &ras.Error{Op: "PhonebookPath", Code: ras.ErrorInvalidParameter}
}

func (f *Fake) Entries(phonebook string) ([]string, error) {
	if err := f.fail("Entries"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.entries[key(phonebook)]))
	for _, e := range f.entries[key(phonebook)] {
		names = append(names, e.Name)
	}
	return names, nil
}

func (f *Fake) ValidateEntryName(phonebook, name string) error {
	if err := f.fail("ValidateEntryName"); err != nil {
		return err
	}
	if name == "" || strings.ContainsAny(name, `\/:*?"<>|`) {
		return &ras.Error{Op: "RasValidateEntryName", Code: ras.ErrorInvalidName}
	}
	if f.Entry(phonebook, name) != nil {
		return &ras.Error{Op: "RasValidateEntryName", Code: ras.ErrorAlreadyExists}
	}
	return nil
}

func (f *Fake) CreateEntry(phonebook string, e *ras.Entry) error {
	if err := f.fail("CreateEntry"); err != nil {
		return err
	}
	if f.Entry(phonebook, e.Name) != nil {
		return &ras.Error{Op: "RasSetEntryProperties", Code: ras.ErrorAlreadyExists}
	}
	cp := *e
	f.AddEntry(phonebook, &cp)
	return nil
}

func (f *Fake) DeleteEntry(phonebook, name string) error {
	if err := f.fail("DeleteEntry"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.entries[key(phonebook)]
	for i, e := range list {
		if e.Name == name {
			f.entries[key(phonebook)] = append(list[:i:i], list[i+1:]...)
			delete(f.psks, key(phonebook)+"|"+name)
			return nil
		}
	}
	return &ras.Error{Op: "RasDeleteEntry", Code: ras.ErrorCannotFindPhonebookEntry}
}

func (f *Fake) SetPresharedKey(phonebook, name, psk string) error {
	if err := f.fail("SetPresharedKey"); err != nil {
		return err
	}
	if f.Entry(phonebook, name) == nil {
		return &ras.Error{Op: "RasSetCredentials", Code: ras.ErrorCannotFindPhonebookEntry}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.psks[key(phonebook)+"|"+name] = psk
	return nil
}

func (f *Fake) Dial(p ras.DialParams, notify ras.DialNotifier) (ras.Handle, error) {
	if err := f.fail("Dial"); err != nil {
		return 0, err
	}
	if f.Entry(p.Phonebook, p.EntryName) == nil {
		return 0, &ras.Error{Op: "RasDial", Code: ras.ErrorCannotFindPhonebookEntry}
	}

	f.mu.Lock()
	var script DialScript
	if len(f.scripts) > 0 {
		script = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	if script.DialErr != nil {
		f.mu.Unlock()
		return 0, script.DialErr
	}
	f.nextH++
	h := f.nextH
	c := &fakeConn{params: p, state: ras.StateOpenPort, notify: notify}
	if script.Block {
		c.release = make(chan struct{})
	}
	f.conns[h] = c
	f.dials = append(f.dials, p)
	f.mu.Unlock()

	go f.run(h, c, script)
	return h, nil
}

func (f *Fake) run(h ras.Handle, c *fakeConn, script DialScript) {
	for _, st := range script.States {
		if !f.advance(h, c, ras.DialEvent{Handle: h, State: st}) {
			return
		}
	}
	if c.release != nil {
		<-c.release
	}

	if script.Err != nil {
		f.finish(h, c, ras.DialEvent{Handle: h, State: c.state, Err: script.Err})
		return
	}
	f.finish(h, c, ras.DialEvent{Handle: h, State: ras.StateConnected})
}

// advance reports a state unless the connection was hung up meanwhile.
func (f *Fake) advance(h ras.Handle, c *fakeConn, ev ras.DialEvent) bool {
	f.mu.Lock()
	if c.done {
		f.mu.Unlock()
		return false
	}
	c.state = ev.State
	f.mu.Unlock()
	c.notify(ev)
	return true
}

func (f *Fake) finish(h ras.Handle, c *fakeConn, ev ras.DialEvent) {
	f.mu.Lock()
	if c.done {
		f.mu.Unlock()
		return
	}
	c.done = true
	if ev.Err == nil {
		c.state = ras.StateConnected
	}
	f.mu.Unlock()
	c.notify(ev)
}

func (f *Fake) HangUp(h ras.Handle) error {
	if err := f.fail("HangUp"); err != nil {
		return err
	}
	f.mu.Lock()
	gate := f.hangUpGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.hangUps = append(f.hangUps, h)
	c, ok := f.conns[h]
	if !ok {
		f.mu.Unlock()
		return nil
	}
	delete(f.conns, h)
	pending := !c.done
	c.done = true
	f.mu.Unlock()

	if pending {
		c.unblock()
		// A dial aborted by a hang-up reports a user disconnection.
		c.notify(ras.DialEvent{Handle: h, State: ras.StateDisconnected,
			Err: &ras.Error{Op: "RasDial", Code: ras.ErrorUserDisconnection}})
	}
	if c.watcher != nil {
		c.watcher.emit(ras.WatchEvent{Kind: ras.WatchDisconnected, Handle: h})
		c.watcher.finish()
	}
	return nil
}

func (f *Fake) ActiveConnections() ([]ras.ActiveConnection, error) {
	if err := f.fail("ActiveConnections"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ras.ActiveConnection
	for h := ras.Handle(1); h <= f.nextH; h++ {
		c, ok := f.conns[h]
		if !ok {
			continue
		}
		out = append(out, ras.ActiveConnection{
			Handle:     h,
			EntryName:  c.params.EntryName,
			Phonebook:  c.params.Phonebook,
			DeviceType: ras.DeviceTypeVPN,
			DeviceName: ras.DeviceNameL2TP,
		})
	}
	return out, nil
}

func (f *Fake) Status(h ras.Handle) (ras.ConnState, error) {
	if err := f.fail("Status"); err != nil {
		return ras.StateDisconnected, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conns[h]
	if !ok {
		return ras.StateDisconnected, &ras.Error{Op: "RasGetConnectStatus", Code: ras.ErrorInvalidHandle}
	}
	return c.state, nil
}

func (f *Fake) IPProjection(h ras.Handle) (*ras.IPInfo, error) {
	if err := f.fail("IPProjection"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conns[h]; !ok {
		return nil, &ras.Error{Op: "RasGetProjectionInfo", Code: ras.ErrorInvalidHandle}
	}
	return &ras.IPInfo{IPAddress: f.IP, ServerIPAddress: f.ServerIP}, nil
}

func (f *Fake) Watch(h ras.Handle) (ras.Watcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchFail != nil {
		return nil, f.watchFail
	}
	c, ok := f.conns[h]
	if !ok {
		return nil, &ras.Error{Op: "RasConnectionNotification", Code: ras.ErrorInvalidHandle}
	}
	w := &fakeWatcher{events: make(chan ras.WatchEvent, 8)}
	c.watcher = w
	return w, nil
}

// Watching reports whether h has an open watcher.
func (f *Fake) Watching(h ras.Handle) bool {
	f.mu.Lock()
	c, ok := f.conns[h]
	f.mu.Unlock()
	if !ok || c.watcher == nil {
		return false
	}
	c.watcher.mu.Lock()
	defer c.watcher.mu.Unlock()
	return !c.watcher.closed
}

type fakeWatcher struct {
	mu     sync.Mutex
	events chan ras.WatchEvent
	closed bool
}

func (w *fakeWatcher) Events() <-chan ras.WatchEvent { return w.events }

func (w *fakeWatcher) emit(ev ras.WatchEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	default:
	}
}

func (w *fakeWatcher) finish() {
	w.Close()
}

func (w *fakeWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
	return nil
}

func key(phonebook string) string {
	return strings.ToLower(phonebook)
}

var _ ras.API = (*Fake)(nil)
