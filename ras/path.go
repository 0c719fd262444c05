package ras

import (
	"path/filepath"
	"strings"
)

// Phonebook locations relative to %APPDATA% and %PROGRAMDATA%.
var phonebookRelPath = filepath.Join("Microsoft", "Network", "Connections", "Pbk", "rasphone.pbk")

// phonebookPath builds the phonebook path for scope from the two
// environment roots.
func phonebookPath(scope Scope, appData, programData string) (string, error) {
	switch scope {
	case ScopeUser:
		if appData == "" {
			return "", &Error{Op: "PhonebookPath", Code: ErrorCannotOpenPhonebook}
		}
		return filepath.Join(appData, phonebookRelPath), nil
	case ScopeAllUsers:
		if programData == "" {
			return "", &Error{Op: "PhonebookPath", Code: ErrorCannotOpenPhonebook}
		}
		return filepath.Join(programData, phonebookRelPath), nil
	default:
		return "", &Error{Op: "PhonebookPath", Code: ErrorInvalidParameter}
	}
}

// samePath compares phonebook paths the way the file system does on Windows.
func samePath(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}
