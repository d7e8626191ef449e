// Package registry is the authoritative list of mods and their lifecycle.
//
// Two collections are kept in the durable store:
//   - remote scripts (activeScripts, sync scope), keyed by content hash
//   - bundled local mods (localMods, sync scope with a local-scope copy),
//     keyed by file name, with per-mod config in localModsConfig
//
// Every mutation is a read-modify-write under one mutex. Anything that has
// to wait (script fetches, presence probes) happens before the lock is
// taken, and the collection is re-read once it is held.
//
// Re-registering the local manifest keeps each surviving mod's enabled flag
// and enables mods that were not known before.
//
// Example Usage:
//
//	manager := registry.NewManager(st, cache, resolver, log, metrics)
//	rec, err := manager.RegisterScript(ctx, "abc123", "Demo", nil)
//	mods, err := manager.RegisterLocalMods(ctx, manifest.Mods)
package registry
