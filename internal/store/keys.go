package store

import "strings"

const (
	KeyActiveScripts   = "activeScripts"
	KeyLocalMods       = "localMods"
	KeyLocalModsConfig = "localModsConfig"
	KeyLocale          = "locale"

	scriptKeyPrefix = "script_"
)

// ScriptKey is the key under which a script's source text is cached.
func ScriptKey(hash string) string {
	return scriptKeyPrefix + hash
}

// IsScriptKey reports whether key holds cached source text.
func IsScriptKey(key string) bool {
	return strings.HasPrefix(key, scriptKeyPrefix)
}
