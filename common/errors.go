// Package common provides shared constants, types, and utilities
// used across the IPsec client.
package common

import "errors"

// Sentinel errors for IPsec client operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection errors.
	ErrAlreadyConnected  = errors.New("connection already active")
	ErrNotConnected      = errors.New("no active connection")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrTimeout           = errors.New("operation timed out")
	ErrCancelled         = errors.New("operation cancelled")
	ErrOperationPending  = errors.New("another operation is pending")
	ErrConnectionDropped = errors.New("connection dropped")

	// Phonebook errors.
	ErrEntryNotFound = errors.New("phonebook entry not found")
	ErrEntryExists   = errors.New("phonebook entry already exists")
	ErrPhonebook     = errors.New("phonebook access failed")

	// Argument errors.
	ErrInvalidArgument = errors.New("invalid argument")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")
	ErrEncryption          = errors.New("encryption error")
	ErrDecryption          = errors.New("decryption error")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")

	// Platform errors.
	ErrUnsupportedPlatform = errors.New("remote access service is not available on this platform")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrClosed              = errors.New("client closed")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
