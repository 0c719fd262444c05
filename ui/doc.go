// Package ui provides the interactive front-ends of the IPsec client.
//
// This package implements:
//
//   - Application: wires the client to profiles, credentials, history,
//     metrics, MQTT publishing and the health checker from the configuration
//   - MenuModel: a terminal menu (bubbletea) to list, create, connect and
//     remove phonebook entries
//   - TrayIndicator: a notification area icon (systray) with per-entry
//     connect and disconnect items
//   - Notifications: user facing messages derived from client events
//
// # Thread Safety
//
// Client events arrive on the client's goroutines. The tray updates its
// menu items directly since systray serialises them internally; the menu
// receives results as bubbletea messages.
//
// # File Organization
//
//   - app.go: Application wiring and shared connect logic
//   - menu.go: interactive terminal menu
//   - tray.go: notification area indicator
//   - icons.go: runtime icon generation (PNG and ICO)
//   - notifications.go: notification types and event mapping
package ui
