// Package store is the coordinator's durable key-value store.
//
// Two scopes mirror an extension's storage areas: ScopeSync travels with the
// user across devices, ScopeLocal stays on this machine. Values are JSON
// (bytedance/sonic). The file backend keeps one snapshot per scope, optionally
// zstd-compressed, and replaces it atomically on every write.
//
// Persisted layout:
//
//	activeScripts    []ScriptRecord            sync
//	localMods        []LocalModRecord          sync, local fallback
//	localModsConfig  map[name]Config           local
//	locale           string                    local
//	script_<hash>    string (source text)      local
package store
