package types

// ScriptRecord is a remotely hosted mod, keyed by its content hash.
type ScriptRecord struct {
	Hash    string `json:"hash"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Config  Config `json:"config"`
}

// LocalModRecord is a mod bundled with the extension package.
type LocalModRecord struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	IsLocal     bool   `json:"isLocal"`
	Enabled     bool   `json:"enabled"`
}

// LocalModCandidate is a manifest entry, before its presence is verified.
type LocalModCandidate struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

// Identifier returns the record's union identifier.
func (r ScriptRecord) Identifier() ModIdentifier { return Remote(r.Hash) }

// Identifier returns the record's union identifier.
func (r LocalModRecord) Identifier() ModIdentifier { return Local(r.Name) }

// Config is a mod-defined, free-form settings map.
type Config map[string]interface{}

// Merge returns a copy of c with patch applied on top. The merge is
// shallow: incoming keys replace existing values wholesale.
func (c Config) Merge(patch Config) Config {
	out := make(Config, len(c)+len(patch))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of c that is never nil.
func (c Config) Clone() Config {
	return c.Merge(nil)
}

// ModState is the lifecycle position of a mod.
type ModState int

const (
	StateUnregistered ModState = iota
	StateEnabled
	StateDisabled
	StateExecuted
)

func (s ModState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateExecuted:
		return "executed"
	default:
		return "unknown"
	}
}
