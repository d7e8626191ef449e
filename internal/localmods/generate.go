package localmods

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultPattern selects mod sources under a mods directory.
const DefaultPattern = "**/*.js"

// GenerateManifest walks root and lists every file matching pattern,
// sorted by name.
func GenerateManifest(root, pattern string) (*Manifest, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("manifest pattern %q: %w", pattern, types.ErrInvalid)
	}

	var (
		mu    sync.Mutex
		names []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		matched, err := doublestar.Match(pattern, rel)
		if err != nil || !matched {
			return err
		}
		mu.Lock()
		names = append(names, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(names)
	m := &Manifest{Mods: make([]types.LocalModCandidate, 0, len(names))}
	for _, name := range names {
		m.Mods = append(m.Mods, types.LocalModCandidate{Name: name, DisplayName: DisplayName(name)})
	}
	return m, nil
}

// DisplayName derives a label from a mod file name:
// "combat/auto_battle.js" becomes "Auto Battle".
func DisplayName(name string) string {
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	if len(words) == 0 {
		return name
	}
	title := cases.Title(language.English, cases.NoLower)
	return title.String(strings.Join(words, " "))
}
