package vpn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BojanKomazec/IpSec/common"
)

func TestNewEndpoint(t *testing.T) {
	ep, err := NewEndpoint(" 203.0.113.7 ")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ep.IPAddress())

	_, err = NewEndpoint("  ")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestParamsFromMap(t *testing.T) {
	p, err := ParamsFromMap(map[string]any{
		"username":            "alice",
		"password":            "secret",
		"IpSecConnectionName": "Office",
	})
	require.NoError(t, err)
	assert.Equal(t, ConnectParams{EntryName: "Office", Username: "alice", Password: "secret"}, p)

	tests := []struct {
		name string
		m    map[string]any
	}{
		{"missing username", map[string]any{"password": "x", "IpSecConnectionName": "y"}},
		{"missing password", map[string]any{"username": "x", "IpSecConnectionName": "y"}},
		{"missing name", map[string]any{"username": "x", "password": "y"}},
		{"empty value", map[string]any{"username": "", "password": "x", "IpSecConnectionName": "y"}},
		{"not a string", map[string]any{"username": 7, "password": "x", "IpSecConnectionName": "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParamsFromMap(tt.m)
			assert.ErrorIs(t, err, common.ErrInvalidArgument)
		})
	}
}

func TestConnectParams_String(t *testing.T) {
	p := ConnectParams{EntryName: "Office", Username: "alice", Password: "secret"}
	assert.NotContains(t, p.String(), "secret")
	assert.Contains(t, p.String(), "alice")
}
