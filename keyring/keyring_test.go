package keyring

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/BojanKomazec/IpSec/common"
)

func init() {
	// Keep key derivation fast in tests.
	scryptN = 1 << 10
}

func TestStore_SystemKeyring(t *testing.T) {
	gokeyring.MockInit()

	s, err := New(Options{Service: "ipsec-client-test", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, s.Local())

	require.NoError(t, s.Store("Office", "secret"))
	got, err := s.Get("Office")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
	assert.True(t, s.Exists("Office"))

	require.NoError(t, s.StoreUsername("Office", "alice"))
	user, err := s.Username("Office")
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	require.NoError(t, s.Delete("Office"))
	_, err = s.Get("Office")
	assert.ErrorIs(t, err, common.ErrCredentialsNotFound)
	_, err = s.Username("Office")
	assert.ErrorIs(t, err, common.ErrCredentialsNotFound)
	assert.ErrorIs(t, s.Delete("Office"), common.ErrCredentialsNotFound)
}

func TestStore_Validation(t *testing.T) {
	gokeyring.MockInit()
	s, err := New(Options{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Store("", "x"), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.Store("Office", ""), common.ErrInvalidArgument)
	_, err = s.Get("")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.ErrorIs(t, s.Delete(""), common.ErrInvalidArgument)
	assert.ErrorIs(t, s.StoreUsername("Office", ""), common.ErrInvalidArgument)
}

func TestStore_LocalFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Options{Dir: dir, ForceLocal: true})
	require.NoError(t, err)
	assert.True(t, s.Local())

	require.NoError(t, s.Store("Office", "very-secret-password"))
	require.NoError(t, s.Store("Lab", "other"))

	data, err := os.ReadFile(filepath.Join(dir, common.CredentialsFileName))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "very-secret-password"), "file must be encrypted")

	// A second store reads the same file back.
	s2, err := New(Options{Dir: dir, ForceLocal: true})
	require.NoError(t, err)
	got, err := s2.Get("Office")
	require.NoError(t, err)
	assert.Equal(t, "very-secret-password", got)

	require.NoError(t, s2.Clear())
	_, err = s2.Get("Lab")
	assert.ErrorIs(t, err, common.ErrCredentialsNotFound)
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, common.CredentialsFileName), []byte("bm90IGVuY3J5cHRlZCBkYXRhIGF0IGFsbA=="), 0600))

	_, err := New(Options{Dir: dir, ForceLocal: true})
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestStore_FallbackWhenKeyringUnavailable(t *testing.T) {
	gokeyring.MockInitWithError(errors.New("no secret service"))
	defer gokeyring.MockInit()

	s, err := New(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, s.Local())

	require.NoError(t, s.Store("Office", "secret"))
	got, err := s.Get("Office")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}
