// Package locale looks up translated strings for mods.
//
// Bundles are TOML files named by BCP 47 tag (en.toml, pt-BR.toml). Nested
// tables flatten to dotted keys. A lookup walks the requested tag, its
// parents, then the default locale, and finally returns the key itself.
package locale

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"golang.org/x/text/language"
)

// Catalog holds message bundles by locale.
type Catalog struct {
	def string

	mu      sync.RWMutex
	bundles map[string]map[string]string
}

// NewCatalog creates an empty catalog falling back to defaultLocale.
func NewCatalog(defaultLocale string) *Catalog {
	def, err := Normalize(defaultLocale)
	if err != nil {
		def = "en"
	}
	return &Catalog{def: def, bundles: make(map[string]map[string]string)}
}

// LoadDir reads every *.toml bundle in dir. A missing directory yields an
// empty catalog.
func LoadDir(fs afero.Fs, dir, defaultLocale string) (*Catalog, error) {
	c := NewCatalog(defaultLocale)

	entries, err := afero.ReadDir(fs, dir)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read locale dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		data, err := afero.ReadFile(fs, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", e.Name(), err)
		}
		if err := c.Add(strings.TrimSuffix(e.Name(), ".toml"), data); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Normalize canonicalises a BCP 47 tag.
func Normalize(locale string) (string, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("locale %q: %w: %v", locale, types.ErrInvalid, err)
	}
	return tag.String(), nil
}

// Add parses a TOML bundle for locale and merges it into the catalog.
func (c *Catalog) Add(locale string, data []byte) error {
	var tree map[string]interface{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parse bundle %s: %w", locale, err)
	}
	msgs := make(map[string]string)
	flatten("", tree, msgs)
	return c.AddMessages(locale, msgs)
}

// AddMessages merges flat messages for locale.
func (c *Catalog) AddMessages(locale string, msgs map[string]string) error {
	tag, err := Normalize(locale)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bundle, ok := c.bundles[tag]
	if !ok {
		bundle = make(map[string]string, len(msgs))
		c.bundles[tag] = bundle
	}
	for k, v := range msgs {
		bundle[k] = v
	}
	return nil
}

// Default returns the fallback locale.
func (c *Catalog) Default() string {
	return c.def
}

// Locales lists the loaded locales.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.bundles))
	for tag := range c.bundles {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Lookup translates key for locale, falling back through parent locales
// and the default locale to the key itself.
func (c *Catalog) Lookup(locale, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, tag := range c.chain(locale) {
		if msg, ok := c.bundles[tag][key]; ok {
			return msg
		}
	}
	return key
}

// Messages returns the effective message set for locale.
func (c *Catalog) Messages(locale string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	chain := c.chain(locale)
	out := make(map[string]string)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range c.bundles[chain[i]] {
			out[k] = v
		}
	}
	return out
}

// chain lists the tags consulted for locale, most specific first.
func (c *Catalog) chain(locale string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}

	if tag, err := language.Parse(locale); err == nil {
		for t := tag; ; t = t.Parent() {
			add(t.String())
			if t.IsRoot() {
				break
			}
		}
	}
	add(c.def)
	return out
}

func flatten(prefix string, tree map[string]interface{}, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
