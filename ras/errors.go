package ras

import (
	"fmt"

	"github.com/BojanKomazec/IpSec/common"
)

// Platform error codes surfaced by the binding.
const (
	ErrorSuccess                  uint32 = 0
	ErrorAccessDenied             uint32 = 5
	ErrorInvalidHandle            uint32 = 6
	ErrorInvalidParameter         uint32 = 87
	ErrorInvalidName              uint32 = 123
	ErrorAlreadyExists            uint32 = 183
	ErrorBufferTooSmall           uint32 = 603
	ErrorCannotOpenPhonebook      uint32 = 621
	ErrorCannotLoadPhonebook      uint32 = 622
	ErrorCannotFindPhonebookEntry uint32 = 623
	ErrorCannotWritePhonebook     uint32 = 624
	ErrorUserDisconnection        uint32 = 631
	ErrorRequestTimeout           uint32 = 638
	ErrorNoConnection             uint32 = 668
	ErrorNoAnswer                 uint32 = 678
	ErrorAuthenticationFailure    uint32 = 691
	ErrorPPPTimeout               uint32 = 718
	ErrorPPPNoResponse            uint32 = 721
	ErrorL2TPSecurityLayer        uint32 = 789
	ErrorVPNUnreachable           uint32 = 800
	ErrorVPNNoResponse            uint32 = 809
)

var errorMessages = map[uint32]string{
	ErrorAccessDenied:             "access is denied",
	ErrorInvalidHandle:            "the handle is invalid",
	ErrorInvalidParameter:         "the parameter is incorrect",
	ErrorInvalidName:              "the entry name is invalid",
	ErrorAlreadyExists:            "an entry with this name already exists in the phonebook",
	ErrorBufferTooSmall:           "the buffer is too small",
	ErrorCannotOpenPhonebook:      "the system could not open the phonebook file",
	ErrorCannotLoadPhonebook:      "the system could not load the phonebook file",
	ErrorCannotFindPhonebookEntry: "the system could not find the phonebook entry for this connection",
	ErrorCannotWritePhonebook:     "the system could not update the phonebook file",
	ErrorUserDisconnection:        "the connection was terminated by the user",
	ErrorRequestTimeout:           "the request has timed out",
	ErrorNoConnection:             "the connection was terminated",
	ErrorNoAnswer:                 "the remote computer did not respond",
	ErrorAuthenticationFailure:    "the remote connection was denied because the user name and password combination is not recognized",
	ErrorPPPTimeout:               "the connection was terminated because the remote computer did not respond in a timely manner",
	ErrorPPPNoResponse:            "the remote computer did not respond",
	ErrorL2TPSecurityLayer:        "the L2TP connection attempt failed because the security layer encountered a processing error during initial negotiations with the remote computer",
	ErrorVPNUnreachable:           "unable to establish the VPN connection",
	ErrorVPNNoResponse:            "the network connection between your computer and the VPN server could not be established because the remote server is not responding",
}

// errorText resolves the platform message for a code. The Windows build
// replaces it with RasGetErrorString.
var errorText = func(code uint32) string {
	return errorMessages[code]
}

// Error is a failed Remote Access Service call.
type Error struct {
	Op   string
	Code uint32
}

// Error returns the operation, code and platform message.
func (e *Error) Error() string {
	msg := errorText(e.Code)
	if msg == "" {
		msg = errorMessages[e.Code]
	}
	if msg == "" {
		return fmt.Sprintf("%s: error %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: error %d: %s", e.Op, e.Code, msg)
}

// Is maps platform codes onto the sentinels in package common.
func (e *Error) Is(target error) bool {
	switch target {
	case common.ErrEntryNotFound:
		return e.Code == ErrorCannotFindPhonebookEntry
	case common.ErrEntryExists:
		return e.Code == ErrorAlreadyExists
	case common.ErrAuthFailed:
		return e.Code == ErrorAuthenticationFailure
	case common.ErrCancelled:
		return e.Code == ErrorUserDisconnection
	case common.ErrPermissionDenied:
		return e.Code == ErrorAccessDenied
	case common.ErrPhonebook:
		return e.Code == ErrorCannotOpenPhonebook ||
			e.Code == ErrorCannotLoadPhonebook ||
			e.Code == ErrorCannotWritePhonebook
	case common.ErrInvalidArgument:
		return e.Code == ErrorInvalidParameter || e.Code == ErrorInvalidName
	case common.ErrNotConnected:
		return e.Code == ErrorInvalidHandle || e.Code == ErrorNoConnection
	case common.ErrTimeout:
		return e.Code == ErrorRequestTimeout || e.Code == ErrorPPPTimeout
	case common.ErrConnectionFailed:
		return e.Op == "RasDial" && e.Code != ErrorUserDisconnection
	}
	return false
}

// IsCode reports whether err is a ras *Error carrying code.
func IsCode(err error, code uint32) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
