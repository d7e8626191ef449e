package types

import (
	"fmt"
	"strings"
)

// ModKind discriminates remote scripts from bundled mods.
type ModKind string

const (
	KindRemote ModKind = "remote"
	KindLocal  ModKind = "local"
)

// ModIdentifier names a mod of either kind: Remote(hash) or Local(name).
type ModIdentifier struct {
	Kind ModKind `json:"kind"`
	Key  string  `json:"key"`
}

// Remote identifies a remote script by hash.
func Remote(hash string) ModIdentifier {
	return ModIdentifier{Kind: KindRemote, Key: hash}
}

// Local identifies a bundled mod by name.
func Local(name string) ModIdentifier {
	return ModIdentifier{Kind: KindLocal, Key: name}
}

// IsLocal reports whether id names a bundled mod.
func (id ModIdentifier) IsLocal() bool { return id.Kind == KindLocal }

// String renders id as "kind:key".
func (id ModIdentifier) String() string {
	return string(id.Kind) + ":" + id.Key
}

// Validate checks that id has a known kind and a key.
func (id ModIdentifier) Validate() error {
	if id.Kind != KindRemote && id.Kind != KindLocal {
		return fmt.Errorf("mod kind %q: %w", id.Kind, ErrInvalid)
	}
	if id.Key == "" {
		return fmt.Errorf("empty mod key: %w", ErrInvalid)
	}
	return nil
}

// ParseModIdentifier parses the "kind:key" form produced by String.
func ParseModIdentifier(s string) (ModIdentifier, error) {
	kind, key, ok := strings.Cut(s, ":")
	if !ok {
		return ModIdentifier{}, fmt.Errorf("mod identifier %q: %w", s, ErrInvalid)
	}
	id := ModIdentifier{Kind: ModKind(kind), Key: key}
	if err := id.Validate(); err != nil {
		return ModIdentifier{}, err
	}
	return id, nil
}
