// Package common provides shared constants, types, utilities, and interfaces
// used throughout the IPsec client.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Timeouts, file names, and parameter keys
//   - Errors: Sentinel errors for consistent error handling across packages
//   - Interfaces: Abstractions for credential storage and logging
//   - Logger: Leveled logging with optional rotating file output
//   - Utils: Config directory resolution and ID generation
//
// # Usage
//
//	timeout := common.DialTimeout
//
//	common.LogInfo("Dialing %s", entryName)
//
//	if errors.Is(err, common.ErrEntryNotFound) {
//	    // Handle missing phonebook entry
//	}
package common
