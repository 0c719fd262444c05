package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BojanKomazec/IpSec/ras"
	"github.com/BojanKomazec/IpSec/vpn"
)

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "00:00:00", formatUptime(0))
	assert.Equal(t, "00:00:00", formatUptime(-time.Second))
	assert.Equal(t, "00:01:05", formatUptime(65*time.Second))
	assert.Equal(t, "26:03:04", formatUptime(26*time.Hour+3*time.Minute+4*time.Second))
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "Not connected", statusLine(vpn.Connection{}))
	assert.Equal(t, "Connected: Office", statusLine(vpn.Connection{EntryName: "Office", Status: vpn.StatusConnected}))
	assert.Equal(t, "Connecting: Office (Authenticate)",
		statusLine(vpn.Connection{EntryName: "Office", Status: vpn.StatusConnecting, State: ras.StateAuthenticate}))
	assert.Equal(t, "Error: authentication failed",
		statusLine(vpn.Connection{EntryName: "Office", Status: vpn.StatusError, LastError: "authentication failed"}))
}

func TestEntryTitle(t *testing.T) {
	conn := vpn.Connection{EntryName: "Office", Status: vpn.StatusConnected}
	assert.Equal(t, "● Office", entryTitle("Office", conn))
	assert.Equal(t, "Lab", entryTitle("Lab", conn))

	conn.Status = vpn.StatusDisconnected
	assert.Equal(t, "Office", entryTitle("Office", conn))
}

func TestIconStateFor(t *testing.T) {
	assert.Equal(t, IconConnected, iconStateFor(vpn.StatusConnected))
	assert.Equal(t, IconConnecting, iconStateFor(vpn.StatusConnecting))
	assert.Equal(t, IconConnecting, iconStateFor(vpn.StatusDisconnecting))
	assert.Equal(t, IconError, iconStateFor(vpn.StatusError))
	assert.Equal(t, IconDisconnected, iconStateFor(vpn.StatusDisconnected))
}
