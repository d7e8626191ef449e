package protocol

// Action discriminates message payloads.
type Action string

const (
	ActionGetScript          Action = "getScript"
	ActionGetActiveScripts   Action = "getActiveScripts"
	ActionRegisterScript     Action = "registerScript"
	ActionToggleScript       Action = "toggleScript"
	ActionUpdateScriptConfig Action = "updateScriptConfig"
	ActionRemoveScript       Action = "removeScript"
	ActionRegisterLocalMods  Action = "registerLocalMods"
	ActionToggleLocalMod     Action = "toggleLocalMod"
	ActionGetLocalMods       Action = "getLocalMods"
	ActionGetLocalModConfig  Action = "getLocalModConfig"
	ActionExecuteLocalMod    Action = "executeLocalMod"
	ActionContentScriptReady Action = "contentScriptReady"
	ActionLoadScripts        Action = "loadScripts"
	ActionReloadLocalMods    Action = "reloadLocalMods"

	ActionRegistryInstalled Action = "registryInstalled"
	ActionGetModConfig      Action = "getModConfig"
	ActionGetLocale         Action = "getLocale"
	ActionSetLocale         Action = "setLocale"
	ActionLocaleChanged     Action = "localeChanged"
	ActionPing              Action = "ping"
)

// Kind separates requests from pushes and responses.
type Kind string

const (
	KindRequest  Kind = "request"
	KindPush     Kind = "push"
	KindResponse Kind = "response"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRequest, KindPush, KindResponse:
		return true
	default:
		return false
	}
}

// Origin tags the sender of a Channel B envelope.
type Origin string

const (
	// OriginClient is the page realm's relay client.
	OriginClient Origin = "CLIENT"
	// OriginExtension is the bridge.
	OriginExtension Origin = "EXTENSION"
	// OriginSandboxUtils is the capability object's config bridge.
	OriginSandboxUtils Origin = "SANDBOX_UTILS"
)

// Known reports whether o is a recognised sender.
func (o Origin) Known() bool {
	switch o {
	case OriginClient, OriginExtension, OriginSandboxUtils:
		return true
	default:
		return false
	}
}

// FromPage reports whether o is a page realm sender.
func (o Origin) FromPage() bool {
	return o == OriginClient || o == OriginSandboxUtils
}
