package vpn

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BojanKomazec/IpSec/common"
)

func TestProfileManager_PutGetRemove(t *testing.T) {
	dir := t.TempDir()
	pm, err := NewProfileManager(dir)
	require.NoError(t, err)
	assert.Empty(t, pm.List())

	require.NoError(t, pm.Put(&Profile{EntryName: "Office", Server: "vpn.example.com", Username: "alice"}))
	require.NoError(t, pm.Put(&Profile{EntryName: "Lab", Server: "198.51.100.4"}))

	p, err := pm.Get("Office")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.False(t, p.Created.IsZero())
	created := p.Created

	require.NoError(t, pm.Put(&Profile{EntryName: "Office", Server: "vpn2.example.com", Username: "alice"}))
	p, err = pm.Get("Office")
	require.NoError(t, err)
	assert.Equal(t, "vpn2.example.com", p.Server)
	assert.True(t, created.Equal(p.Created), "update keeps the creation time")
	assert.Len(t, pm.List(), 2)

	require.NoError(t, pm.Remove("Lab"))
	assert.ErrorIs(t, pm.Remove("Lab"), ErrProfileNotFound)
	_, err = pm.Get("Lab")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	// Reload from disk.
	pm2, err := NewProfileManager(dir)
	require.NoError(t, err)
	list := pm2.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Office", list[0].EntryName)
}

func TestProfileManager_MarkUsedOrdering(t *testing.T) {
	pm, err := NewProfileManager(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, pm.Put(&Profile{EntryName: "A", Server: "a.example.com"}))
	require.NoError(t, pm.Put(&Profile{EntryName: "B", Server: "b.example.com"}))
	require.NoError(t, pm.MarkUsed("A"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, pm.MarkUsed("B"))

	list := pm.List()
	assert.Equal(t, "B", list[0].EntryName)
	assert.ErrorIs(t, pm.MarkUsed("C"), ErrProfileNotFound)
}

func TestProfile_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Profile{Server: "x"}).Validate(), common.ErrInvalidArgument)
	assert.ErrorIs(t, (&Profile{EntryName: "x"}).Validate(), common.ErrInvalidArgument)
	assert.ErrorIs(t, (&Profile{EntryName: "x", Server: "vpn.example.com:1701"}).Validate(), common.ErrInvalidArgument)
	assert.NoError(t, (&Profile{EntryName: "x", Server: "vpn.example.com"}).Validate())

	ep, err := (&Profile{EntryName: "x", Server: "vpn.example.com"}).Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "vpn.example.com", ep.IPAddress())
}

func TestProfileManager_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProfilesFileName), []byte("{not: [yaml"), 0600))

	_, err := NewProfileManager(dir)
	assert.Error(t, err)
}
