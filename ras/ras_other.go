//go:build !windows

package ras

import (
	"os"

	"github.com/BojanKomazec/IpSec/common"
)

// Supported reports whether the Remote Access Service is available.
func Supported() bool { return false }

// New returns an API whose calls fail with common.ErrUnsupportedPlatform.
func New() API { return unsupported{} }

type unsupported struct{}

func (unsupported) PhonebookPath(scope Scope) (string, error) {
	// Resolving the path needs no platform calls; it keeps --help style
	// diagnostics meaningful when run elsewhere.
	return phonebookPath(scope, os.Getenv("APPDATA"), os.Getenv("PROGRAMDATA"))
}

func (unsupported) Entries(string) ([]string, error) {
	return nil, common.ErrUnsupportedPlatform
}

func (unsupported) ValidateEntryName(string, string) error {
	return common.ErrUnsupportedPlatform
}

func (unsupported) CreateEntry(string, *Entry) error {
	return common.ErrUnsupportedPlatform
}

func (unsupported) DeleteEntry(string, string) error {
	return common.ErrUnsupportedPlatform
}

func (unsupported) SetPresharedKey(string, string, string) error {
	return common.ErrUnsupportedPlatform
}

func (unsupported) Dial(DialParams, DialNotifier) (Handle, error) {
	return 0, common.ErrUnsupportedPlatform
}

func (unsupported) HangUp(Handle) error {
	return common.ErrUnsupportedPlatform
}

func (unsupported) ActiveConnections() ([]ActiveConnection, error) {
	return nil, common.ErrUnsupportedPlatform
}

func (unsupported) Status(Handle) (ConnState, error) {
	return StateDisconnected, common.ErrUnsupportedPlatform
}

func (unsupported) IPProjection(Handle) (*IPInfo, error) {
	return nil, common.ErrUnsupportedPlatform
}

func (unsupported) Watch(Handle) (Watcher, error) {
	return nil, common.ErrUnsupportedPlatform
}
