package ui

import (
	"errors"
	"fmt"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/vpn"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotificationInfo NotificationType = iota
	NotificationSuccess
	NotificationWarning
	NotificationError
)

// Notification is a user facing message about a connection event.
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
}

func (n Notification) String() string {
	return n.Title + ": " + n.Message
}

// Notifier presents notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// logNotifier writes notifications to the application log.
type logNotifier struct{}

func (logNotifier) Notify(n Notification) {
	switch n.Type {
	case NotificationError:
		common.LogError("%s", n)
	case NotificationWarning:
		common.LogWarn("%s", n)
	default:
		common.LogInfo("%s", n)
	}
}

// NotifyConnected builds the notification for an established connection.
func NotifyConnected(entryName, ip string) Notification {
	msg := "Connected to " + entryName
	if ip != "" {
		msg += " (" + ip + ")"
	}
	return Notification{Title: "VPN Connected", Message: msg, Type: NotificationSuccess}
}

// NotifyDisconnected builds the notification for a requested disconnect.
func NotifyDisconnected(entryName string) Notification {
	return Notification{Title: "VPN Disconnected", Message: "Disconnected from " + entryName, Type: NotificationInfo}
}

// NotifyError builds the notification for a failed or dropped connection.
func NotifyError(entryName, errorMsg string) Notification {
	return Notification{Title: "Connection Error", Message: entryName + ": " + errorMsg, Type: NotificationError}
}

// NotifyReconnecting builds the notification for a reconnect attempt.
func NotifyReconnecting(entryName string, attempt int) Notification {
	return Notification{
		Title:   "Reconnecting VPN",
		Message: fmt.Sprintf("Reconnecting to %s (attempt %d)", entryName, attempt),
		Type:    NotificationWarning,
	}
}

// notificationFor maps a client event to a notification. Intermediate
// dial states produce none.
func notificationFor(ev vpn.Event) (Notification, bool) {
	if ev.EntryName == "" {
		return Notification{}, false
	}
	switch ev.Status {
	case vpn.StatusConnected:
		return NotifyConnected(ev.EntryName, ""), true
	case vpn.StatusError:
		msg := "connection failed"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		return NotifyError(ev.EntryName, msg), true
	case vpn.StatusDisconnected:
		if ev.Err == nil {
			return NotifyDisconnected(ev.EntryName), true
		}
		if errors.Is(ev.Err, common.ErrCancelled) {
			return Notification{}, false
		}
		return NotifyError(ev.EntryName, ev.Err.Error()), true
	}
	return Notification{}, false
}
