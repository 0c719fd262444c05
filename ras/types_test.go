package ras

import (
	"path/filepath"
	"testing"
)

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateOpenPort, "OpenPort"},
		{StateAuthenticate, "Authenticate"},
		{StateApplySettings, "ApplySettings"},
		{StateInteractive, "Interactive"},
		{StateInvokeEapUI, "InvokeEapUI"},
		{StateConnected, "Connected"},
		{StateDisconnected, "Disconnected"},
		{ConnState(0x3000), "ConnState(0x3000)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnState(%d).String() = %q, want %q", uint32(tt.state), got, tt.want)
		}
	}
}

func TestConnStateValues(t *testing.T) {
	// Values must match RASCONNSTATE.
	if StateApplySettings != 24 {
		t.Errorf("StateApplySettings = %d, want 24", StateApplySettings)
	}
	if StatePasswordExpired != 0x1003 {
		t.Errorf("StatePasswordExpired = %#x, want 0x1003", uint32(StatePasswordExpired))
	}
	if StateDisconnected != 0x2001 {
		t.Errorf("StateDisconnected = %#x, want 0x2001", uint32(StateDisconnected))
	}
}

func TestConnStateTerminalAndPaused(t *testing.T) {
	if !StateConnected.Terminal() || !StateDisconnected.Terminal() {
		t.Error("Connected and Disconnected should be terminal")
	}
	if StateAuthenticate.Terminal() {
		t.Error("Authenticate should not be terminal")
	}
	if !StateRetryAuthentication.Paused() {
		t.Error("RetryAuthentication should be paused")
	}
	if StateConnected.Paused() || StateProjected.Paused() {
		t.Error("Connected and Projected should not be paused")
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", ScopeUser, false},
		{"user", ScopeUser, false},
		{"all-users", ScopeAllUsers, false},
		{"all", ScopeAllUsers, false},
		{"machine", ScopeUser, true},
	}

	for _, tt := range tests {
		got, err := ParseScope(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScope(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseScope(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if ScopeAllUsers.String() != "all-users" || Scope(7).String() != "unknown" {
		t.Error("unexpected Scope.String()")
	}
}

func TestPhonebookPath(t *testing.T) {
	user, err := phonebookPath(ScopeUser, "appdata", "programdata")
	if err != nil {
		t.Fatalf("phonebookPath(user) error = %v", err)
	}
	if want := filepath.Join("appdata", "Microsoft", "Network", "Connections", "Pbk", "rasphone.pbk"); user != want {
		t.Errorf("phonebookPath(user) = %q, want %q", user, want)
	}

	all, err := phonebookPath(ScopeAllUsers, "appdata", "programdata")
	if err != nil {
		t.Fatalf("phonebookPath(all-users) error = %v", err)
	}
	if filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(all))))) != "programdata" {
		t.Errorf("phonebookPath(all-users) = %q, want it under programdata", all)
	}

	if _, err := phonebookPath(ScopeUser, "", "programdata"); !IsCode(err, ErrorCannotOpenPhonebook) {
		t.Errorf("phonebookPath with no APPDATA error = %v", err)
	}
	if _, err := phonebookPath(Scope(9), "a", "b"); !IsCode(err, ErrorInvalidParameter) {
		t.Errorf("phonebookPath with unknown scope error = %v", err)
	}
}

func TestSamePath(t *testing.T) {
	if !samePath("C:/Users/A/rasphone.pbk", "c:/users/a/./rasphone.pbk") {
		t.Error("paths differing in case should compare equal")
	}
	if samePath("C:/Users/A/rasphone.pbk", "C:/Users/B/rasphone.pbk") {
		t.Error("different paths compared equal")
	}
}
