package vpn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/ras"
	"github.com/BojanKomazec/IpSec/ras/rastest"
)

const (
	testEntry  = "Office"
	testServer = "vpn.example.com"
)

type recordingObserver struct {
	mu       sync.Mutex
	events   []Event
	results  []string
	sessions []Session
	ended    []string
}

func (r *recordingObserver) OnStateChange(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingObserver) OnDialResult(_, result string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingObserver) OnSessionStart(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *recordingObserver) OnSessionEnd(_, result string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, result)
}

func (r *recordingObserver) Results() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...)
}

func (r *recordingObserver) Ended() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ended...)
}

func (r *recordingObserver) States() []ras.ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ras.ConnState
	for _, ev := range r.events {
		out = append(out, ev.State)
	}
	return out
}

type memoryStore struct {
	mu        sync.Mutex
	passwords map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{passwords: make(map[string]string)}
}

func (m *memoryStore) Store(entry, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwords[entry] = password
	return nil
}

func (m *memoryStore) Get(entry string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passwords[entry]
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return p, nil
}

func (m *memoryStore) Delete(entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passwords[entry]; !ok {
		return common.ErrCredentialsNotFound
	}
	delete(m.passwords, entry)
	return nil
}

func (m *memoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwords = make(map[string]string)
	return nil
}

func newTestClient(t *testing.T, opts Options) (*Client, *rastest.Fake, *recordingObserver) {
	t.Helper()
	fake := rastest.New()
	fake.AddEntry(rastest.DefaultPhonebook, NewL2TPEntry(testEntry))

	rec := &recordingObserver{}
	opts.Observers = append(opts.Observers, rec)
	client, err := NewClient(fake, opts)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, fake, rec
}

func testParams() ConnectParams {
	return ConnectParams{EntryName: testEntry, Username: "alice", Password: "secret"}
}

func testEndpoint(t *testing.T) Endpoint {
	t.Helper()
	ep, err := NewEndpoint(testServer)
	require.NoError(t, err)
	return ep
}

func TestNewClient(t *testing.T) {
	fake := rastest.New()

	client, err := NewClient(fake, Options{})
	require.NoError(t, err)
	assert.Equal(t, rastest.DefaultPhonebook, client.Phonebook())
	assert.Equal(t, StatusDisconnected, client.Status().Status)

	client, err = NewClient(fake, Options{Scope: ras.ScopeAllUsers})
	require.NoError(t, err)
	assert.Equal(t, rastest.AllUsersPhonebook, client.Phonebook())

	_, err = NewClient(nil, Options{})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	fake.Fail("PhonebookPath", &ras.Error{Op: "PhonebookPath", Code: ras.ErrorCannotOpenPhonebook})
	_, err = NewClient(fake, Options{})
	assert.ErrorIs(t, err, common.ErrPhonebook)
}

func TestClient_CreateEntry(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})

	require.NoError(t, client.CreateEntry("Lab", "psk-123"))

	entry := fake.Entry(rastest.DefaultPhonebook, "Lab")
	require.NotNil(t, entry)
	assert.Equal(t, common.PlaceholderServer, entry.PhoneNumber)
	assert.Equal(t, ras.DeviceTypeVPN, entry.DeviceType)
	assert.Equal(t, ras.StrategyL2tpOnly, entry.Strategy)
	assert.Equal(t, ras.EncryptionRequire, entry.Encryption)
	assert.True(t, entry.Options.RequireDataEncryption)
	assert.True(t, entry.Options.UsePreSharedKey)
	assert.False(t, entry.Options.UseLogonCredentials)
	assert.True(t, entry.Options.RequireMSChap2)
	assert.True(t, entry.Options.SecureFileAndPrint)
	assert.True(t, entry.Options.SecureClientForMSNet)
	assert.False(t, entry.Options.ReconnectIfDropped)
	assert.Equal(t, "psk-123", fake.PresharedKey(rastest.DefaultPhonebook, "Lab"))

	names, err := client.ListEntries()
	require.NoError(t, err)
	assert.Equal(t, []string{testEntry, "Lab"}, names)
}

func TestClient_CreateEntryErrors(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})

	assert.ErrorIs(t, client.CreateEntry("", "psk"), common.ErrInvalidArgument)
	assert.ErrorIs(t, client.CreateEntry("Lab", ""), common.ErrInvalidArgument)
	assert.ErrorIs(t, client.CreateEntry(testEntry, "psk"), common.ErrEntryExists)
	assert.ErrorIs(t, client.CreateEntry("bad:name", "psk"), common.ErrInvalidArgument)

	fake.Fail("SetPresharedKey", &ras.Error{Op: "RasSetCredentials", Code: ras.ErrorAccessDenied})
	err := client.CreateEntry("Lab", "psk")
	assert.ErrorIs(t, err, common.ErrPermissionDenied)
	assert.Nil(t, fake.Entry(rastest.DefaultPhonebook, "Lab"), "entry should be rolled back")
}

func TestClient_RemoveEntry(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Store(testEntry, "secret"))
	client, fake, _ := newTestClient(t, Options{Credentials: store})

	assert.ErrorIs(t, client.RemoveEntry(""), common.ErrInvalidArgument)
	assert.ErrorIs(t, client.RemoveEntry("Missing"), common.ErrEntryNotFound)

	require.NoError(t, client.RemoveEntry(testEntry))
	assert.Nil(t, fake.Entry(rastest.DefaultPhonebook, testEntry))
	_, err := store.Get(testEntry)
	assert.ErrorIs(t, err, common.ErrCredentialsNotFound)
}

func TestClient_ConnectValidation(t *testing.T) {
	client, _, _ := newTestClient(t, Options{})
	ctx := context.Background()
	ep := testEndpoint(t)

	_, err := client.ConnectAsync(ctx, nil, testParams())
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	for _, p := range []ConnectParams{
		{Username: "alice", Password: "secret"},
		{EntryName: testEntry, Password: "secret"},
		{EntryName: testEntry, Username: "alice"},
	} {
		_, err := client.ConnectAsync(ctx, ep, p)
		assert.ErrorIs(t, err, common.ErrInvalidArgument, "params %v", p)
	}

	p := testParams()
	p.EntryName = "Missing"
	_, err = client.ConnectAsync(ctx, ep, p)
	assert.ErrorIs(t, err, common.ErrEntryNotFound)
}

func TestClient_Connect(t *testing.T) {
	client, fake, rec := newTestClient(t, Options{DialTimeout: time.Minute})
	fake.Script(rastest.DialScript{States: []ras.ConnState{ras.StateConnectDevice, ras.StateAuthenticate}})

	var mu sync.Mutex
	var seen []ras.ConnState
	cancel := client.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.State)
	})
	defer cancel()

	require.NoError(t, client.Connect(context.Background(), testEndpoint(t), testParams()))

	conn := client.Status()
	assert.Equal(t, StatusConnected, conn.Status)
	assert.Equal(t, ras.StateConnected, conn.State)
	assert.Equal(t, testEntry, conn.EntryName)
	assert.Equal(t, testServer, conn.Server)
	assert.Equal(t, "10.0.0.2", conn.IPAddress)
	assert.Equal(t, "10.0.0.1", conn.ServerIPAddress)
	assert.NotEmpty(t, conn.SessionID)
	assert.NotZero(t, conn.Handle)
	assert.True(t, fake.Watching(conn.Handle))

	dials := fake.Dials()
	require.Len(t, dials, 1)
	assert.Equal(t, testServer, dials[0].PhoneNumber)
	assert.Equal(t, "alice", dials[0].Username)
	assert.Equal(t, rastest.DefaultPhonebook, dials[0].Phonebook)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == ras.StateConnected
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Contains(t, seen, ras.StateConnectDevice)
	assert.Contains(t, seen, ras.StateAuthenticate)
	mu.Unlock()

	require.Eventually(t, func() bool { return len(rec.Results()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{ResultConnected}, rec.Results())
}

func TestClient_ConnectAuthFailure(t *testing.T) {
	client, fake, rec := newTestClient(t, Options{})
	fake.Script(rastest.DialScript{
		States: []ras.ConnState{ras.StateAuthenticate},
		Err:    &ras.Error{Op: "RasDial", Code: ras.ErrorAuthenticationFailure},
	})

	err := client.Connect(context.Background(), testEndpoint(t), testParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAuthFailed)
	assert.ErrorIs(t, err, common.ErrConnectionFailed)

	conn := client.Status()
	assert.Equal(t, StatusError, conn.Status)
	assert.NotEmpty(t, conn.LastError)
	assert.Len(t, fake.HangUps(), 1, "failed dial should release its handle")

	require.Eventually(t, func() bool { return len(rec.Results()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{ResultAuthFailed}, rec.Results())
}

func TestClient_ConnectGenericFailure(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	fake.Script(rastest.DialScript{Err: errors.New("modem on fire")})

	err := client.Connect(context.Background(), testEndpoint(t), testParams())
	assert.ErrorIs(t, err, common.ErrConnectionFailed)
}

func TestClient_DialRejected(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	fake.Script(rastest.DialScript{DialErr: &ras.Error{Op: "RasDial", Code: ras.ErrorCannotOpenPhonebook}})

	op, err := client.ConnectAsync(context.Background(), testEndpoint(t), testParams())
	assert.Nil(t, op)
	assert.ErrorIs(t, err, common.ErrPhonebook)
	assert.Equal(t, StatusError, client.Status().Status)

	// The client is usable again.
	require.NoError(t, client.Connect(context.Background(), testEndpoint(t), testParams()))
}

func TestClient_ConcurrentConnect(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	fake.Script(rastest.DialScript{Block: true})

	op, err := client.ConnectAsync(context.Background(), testEndpoint(t), testParams())
	require.NoError(t, err)
	assert.False(t, op.Resolved())
	assert.Equal(t, OpConnect, op.Kind())

	_, err = client.ConnectAsync(context.Background(), testEndpoint(t), testParams())
	assert.ErrorIs(t, err, ErrOperationPending)

	fake.Release(client.Status().Handle)
	require.NoError(t, op.Wait(context.Background()))

	_, err = client.ConnectAsync(context.Background(), testEndpoint(t), testParams())
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.ErrorIs(t, client.RemoveEntry(testEntry), ErrAlreadyConnected)
}

func TestClient_DisconnectCancelsPendingDial(t *testing.T) {
	client, fake, rec := newTestClient(t, Options{})
	fake.Script(rastest.DialScript{Block: true})

	op, err := client.ConnectAsync(context.Background(), testEndpoint(t), testParams())
	require.NoError(t, err)

	require.NoError(t, client.Disconnect(context.Background()))

	<-op.Done()
	assert.ErrorIs(t, op.Err(), common.ErrCancelled)
	assert.Equal(t, StatusDisconnected, client.Status().Status)
	assert.NotEmpty(t, fake.HangUps())

	require.Eventually(t, func() bool { return len(rec.Results()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{ResultCancelled}, rec.Results())
}

func TestClient_DialTimeout(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{DialTimeout: 50 * time.Millisecond})
	fake.Script(rastest.DialScript{Block: true})

	err := client.Connect(context.Background(), testEndpoint(t), testParams())
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.Equal(t, StatusError, client.Status().Status)
	assert.Len(t, fake.HangUps(), 1)
}

func TestClient_ContextCancel(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	fake.Script(rastest.DialScript{Block: true})

	ctx, cancel := context.WithCancel(context.Background())
	op, err := client.ConnectAsync(ctx, testEndpoint(t), testParams())
	require.NoError(t, err)

	cancel()
	<-op.Done()
	assert.ErrorIs(t, op.Err(), common.ErrCancelled)
}

func TestClient_Disconnect(t *testing.T) {
	client, fake, rec := newTestClient(t, Options{})
	require.NoError(t, client.Connect(context.Background(), testEndpoint(t), testParams()))
	h := client.Status().Handle

	op, err := client.DisconnectAsync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OpDisconnect, op.Kind())
	require.NoError(t, op.Wait(context.Background()))

	conn := client.Status()
	assert.Equal(t, StatusDisconnected, conn.Status)
	assert.Zero(t, conn.Handle)
	assert.Empty(t, conn.LastError)
	assert.Equal(t, []ras.Handle{h}, fake.HangUps())

	require.Eventually(t, func() bool { return len(rec.Ended()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{ResultDisconnected}, rec.Ended())
}

func TestClient_DisconnectWithoutConnection(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})

	op, err := client.DisconnectAsync(context.Background())
	require.NoError(t, err)
	assert.True(t, op.Resolved())
	assert.NoError(t, op.Err())

	require.NoError(t, client.DisconnectEntry(context.Background(), testEntry))
	assert.Empty(t, fake.HangUps())
}

func TestClient_DisconnectForeignConnection(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	h := fake.Connect(rastest.DefaultPhonebook, testEntry)

	require.NoError(t, client.DisconnectEntry(context.Background(), testEntry))
	assert.Equal(t, []ras.Handle{h}, fake.HangUps())

	fake.Connect(rastest.DefaultPhonebook, "Lab")
	fake.Fail("HangUp", &ras.Error{Op: "RasHangUp", Code: ras.ErrorAccessDenied})
	err := client.DisconnectEntry(context.Background(), "Lab")
	assert.ErrorIs(t, err, common.ErrPermissionDenied)
}

func TestClient_ConnectionDropped(t *testing.T) {
	client, fake, rec := newTestClient(t, Options{})
	require.NoError(t, client.Connect(context.Background(), testEndpoint(t), testParams()))

	fake.Drop(client.Status().Handle)

	require.Eventually(t, func() bool {
		return client.Status().Status == StatusDisconnected
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, common.ErrConnectionDropped.Error(), client.Status().LastError)

	require.Eventually(t, func() bool { return len(rec.Ended()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{ResultDropped}, rec.Ended())
}

func TestClient_WatcherError(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	require.NoError(t, client.Connect(context.Background(), testEndpoint(t), testParams()))
	h := client.Status().Handle

	fake.WatchError(h, errors.New("notification failed"))
	require.Eventually(t, func() bool {
		return client.Status().Status == StatusError
	}, time.Second, 10*time.Millisecond)

	// The connection can still be hung up.
	require.NoError(t, client.Disconnect(context.Background()))
	assert.Equal(t, StatusDisconnected, client.Status().Status)
}

func TestClient_WatcherErrorKeepsConnectionBusy(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	fake.AddEntry(rastest.DefaultPhonebook, NewL2TPEntry("Lab"))
	require.NoError(t, client.Connect(context.Background(), testEndpoint(t), testParams()))
	h := client.Status().Handle

	fake.WatchError(h, errors.New("notification failed"))
	require.Eventually(t, func() bool {
		return client.Status().Status == StatusError
	}, time.Second, 10*time.Millisecond)

	err := client.RemoveEntry(testEntry)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.NotNil(t, fake.Entry(rastest.DefaultPhonebook, testEntry))

	lab := testParams()
	lab.EntryName = "Lab"
	_, err = client.ConnectAsync(context.Background(), testEndpoint(t), lab)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Len(t, fake.Dials(), 1)
	assert.True(t, fake.Watching(h))

	require.NoError(t, client.Disconnect(context.Background()))
	assert.Equal(t, []ras.Handle{h}, fake.HangUps())
	require.NoError(t, client.RemoveEntry(testEntry))
}

func TestClient_DisconnectInProgress(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	require.NoError(t, client.Connect(context.Background(), testEndpoint(t), testParams()))
	h := client.Status().Handle

	release := fake.HoldHangUps()
	defer release()

	first, err := client.DisconnectEntryAsync(context.Background(), testEntry)
	require.NoError(t, err)
	assert.Equal(t, StatusDisconnecting, client.Status().Status)

	second, err := client.DisconnectEntryAsync(context.Background(), testEntry)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.False(t, second.Resolved())

	release()
	require.NoError(t, second.Wait(context.Background()))
	assert.Equal(t, []ras.Handle{h}, fake.HangUps())
	assert.Equal(t, StatusDisconnected, client.Status().Status)
}

func TestClient_WatchFailure(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	watchErr := errors.New("no events")
	fake.FailWatch(watchErr)

	err := client.Connect(context.Background(), testEndpoint(t), testParams())
	assert.ErrorIs(t, err, watchErr)
	assert.Len(t, fake.HangUps(), 1)
	assert.NotEqual(t, StatusConnected, client.Status().Status)
}

func TestClient_Close(t *testing.T) {
	client, fake, _ := newTestClient(t, Options{})
	fake.Script(rastest.DialScript{Block: true})

	op, err := client.ConnectAsync(context.Background(), testEndpoint(t), testParams())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	<-op.Done()
	assert.ErrorIs(t, op.Err(), common.ErrCancelled)

	_, err = client.ConnectAsync(context.Background(), testEndpoint(t), testParams())
	assert.ErrorIs(t, err, common.ErrClosed)
	_, err = client.DisconnectAsync(context.Background())
	assert.ErrorIs(t, err, common.ErrClosed)
}

func TestNewL2TPEntry(t *testing.T) {
	e := NewL2TPEntry("Office")
	assert.Equal(t, "Office", e.Name)
	assert.Equal(t, "0.0.0.0", e.PhoneNumber)
	assert.Equal(t, ras.DeviceNameL2TP, e.DeviceName)
}
