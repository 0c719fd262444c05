package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BojanKomazec/IpSec/ras/rastest"
	"github.com/BojanKomazec/IpSec/vpn"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_BeginFinish(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	err := store.Begin(ctx, Session{
		ID:        "s1",
		EntryName: "Office",
		Server:    "vpn.example.com",
		Username:  "alice",
		ClientIP:  "10.0.0.2",
		ServerIP:  "10.0.0.1",
		StartedAt: start,
		Result:    vpn.ResultConnected,
	})
	require.NoError(t, err)

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Office", sess.EntryName)
	assert.Equal(t, "vpn.example.com", sess.Server)
	assert.Equal(t, "10.0.0.2", sess.ClientIP)
	assert.True(t, sess.StartedAt.Equal(start))
	assert.True(t, sess.EndedAt.IsZero())
	assert.Zero(t, sess.Duration())

	require.NoError(t, store.Finish(ctx, "s1", vpn.ResultDropped, "link lost", start.Add(90*time.Second)))

	sess, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, vpn.ResultDropped, sess.Result)
	assert.Equal(t, "link lost", sess.Error)
	assert.Equal(t, 90*time.Second, sess.Duration())
}

func TestStore_NotFound(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = store.Finish(ctx, "missing", vpn.ResultDisconnected, "", time.Now())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_Recent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Begin(ctx, Session{
			ID:        id,
			EntryName: "Office",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	sessions, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "c", sessions[0].ID)
	assert.Equal(t, "b", sessions[1].ID)

	sessions, err = store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestStore_CloseOpen(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, store.Begin(ctx, Session{ID: "open", EntryName: "Office", StartedAt: now}))
	require.NoError(t, store.Begin(ctx, Session{ID: "done", EntryName: "Office", StartedAt: now}))
	require.NoError(t, store.Finish(ctx, "done", vpn.ResultDisconnected, "", now.Add(time.Minute)))

	n, err := store.CloseOpen(ctx, "interrupted", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sess, err := store.Get(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, "interrupted", sess.Result)
	assert.Equal(t, time.Hour, sess.Duration())

	sess, err = store.Get(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, vpn.ResultDisconnected, sess.Result)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Begin(ctx, Session{ID: "s1", EntryName: "Office", StartedAt: time.Now()}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "s1")
	assert.NoError(t, err)
}

func TestRecorder_FailedDial(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store)
	end := time.UnixMilli(1_700_000_000_000)
	rec.now = func() time.Time { return end }

	rec.OnDialResult("Office", vpn.ResultAuthFailed, 3*time.Second, errors.New("authentication failed"))
	rec.OnDialResult("Office", vpn.ResultConnected, time.Second, nil)

	sessions, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, vpn.ResultAuthFailed, sessions[0].Result)
	assert.Equal(t, 3*time.Second, sessions[0].Duration())
	assert.Equal(t, "authentication failed", sessions[0].Error)
}

func TestRecorder_SessionEndError(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store)

	rec.OnSessionStart(vpn.Session{ID: "s1", EntryName: "Office", StartedAt: time.Now()})
	rec.OnSessionEnd("s1", vpn.ResultDropped, errors.New("connection dropped"))

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, vpn.ResultDropped, sess.Result)
	assert.Equal(t, "connection dropped", sess.Error)
	assert.False(t, sess.EndedAt.IsZero())
}

func TestRecorder_ClientSession(t *testing.T) {
	store := openTestStore(t)
	fake := rastest.New()
	fake.AddEntry(rastest.DefaultPhonebook, vpn.NewL2TPEntry("Office"))

	client, err := vpn.NewClient(fake, vpn.Options{Observers: []vpn.Observer{NewRecorder(store)}})
	require.NoError(t, err)
	defer client.Close()

	ep, err := vpn.NewEndpoint("vpn.example.com")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx, ep, vpn.ConnectParams{EntryName: "Office", Username: "alice", Password: "secret"}))

	var id string
	require.Eventually(t, func() bool {
		sessions, err := store.Recent(ctx, 10)
		if err != nil || len(sessions) != 1 {
			return false
		}
		id = sessions[0].ID
		return true
	}, 2*time.Second, 10*time.Millisecond)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "vpn.example.com", sess.Server)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, "10.0.0.2", sess.ClientIP)

	require.NoError(t, client.Disconnect(ctx))
	require.Eventually(t, func() bool {
		sess, err := store.Get(ctx, id)
		return err == nil && sess.Result == vpn.ResultDisconnected && !sess.EndedAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
}
