// Package types provides shared data structures for modbridge.
//
// Core Types:
//   - ScriptRecord: Remote mod keyed by content hash
//   - LocalModRecord, LocalModCandidate: Bundled mods and manifest entries
//   - ModIdentifier: Remote(hash) | Local(name) union used for configs and execution
//   - Config: Free-form mod settings with shallow Merge
//   - ModState: Unregistered, Enabled, Disabled, Executed
//
// Errors:
//   - ErrFetch, ErrNotFound, ErrTimeout, ErrExecution, ErrTransport, ErrInvalid
//
// Example Usage:
//
//	id := types.Local("Foo.js")
//	merged := record.Config.Merge(types.Config{"threshold": 5})
package types
