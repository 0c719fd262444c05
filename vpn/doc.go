// Package vpn manages L2TP/IPsec connections of a Windows phonebook.
//
// The package implements:
//
//   - Entry management: listing, creating and removing phonebook entries
//   - Connection management: dialing, watching and hanging up connections
//   - Health checking: probing a live connection and redialing it
//   - Profiles: remembering the server and user name of each entry
//
// # Connection Flow
//
// ConnectAsync validates its arguments, starts an asynchronous dial and
// returns an Operation. Dial notifications arrive on a platform thread;
// the client records each state, and once the dial reports Connected it
// reads the IP projection, starts a watcher on the connection handle and
// resolves the Operation. A dial error, a cancellation or the dial
// timeout resolve the Operation with an error instead.
//
// DisconnectAsync hangs up the connection and resolves once the platform
// has released the handle. It works for connections this process did not
// dial, since the connection is looked up by entry name.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package vpn
