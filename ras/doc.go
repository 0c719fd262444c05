// Package ras is a binding to the Windows Remote Access Service.
//
// It exposes the handful of phonebook and dial operations an L2TP/IPsec
// client needs through the API interface:
//
//   - Phonebook: enumerate, validate, create and delete entries, and store
//     the client pre-shared key of an entry
//   - Dialing: asynchronous RasDial with per-state notifications, hang-up
//     that waits for the platform to release the handle
//   - Monitoring: active connection enumeration, status and IP projection
//     queries, and a Watcher fed by RasConnectionNotification
//
// On Windows, New returns an implementation backed by rasapi32.dll. On
// every other platform it returns an implementation whose methods fail
// with common.ErrUnsupportedPlatform. Package rastest provides an
// in-memory implementation for tests.
package ras
