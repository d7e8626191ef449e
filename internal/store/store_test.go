package store

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Hash    string                 `json:"hash"`
	Enabled bool                   `json:"enabled"`
	Config  map[string]interface{} `json:"config"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemory()

	want := []record{{Hash: "abc123", Enabled: true, Config: map[string]interface{}{"threshold": float64(3)}}}
	require.NoError(t, s.Set(ScopeSync, KeyActiveScripts, want))

	var got []record
	ok, err := s.Get(ScopeSync, KeyActiveScripts, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	ok, err = s.Get(ScopeLocal, KeyActiveScripts, &got)
	require.NoError(t, err)
	assert.False(t, ok, "scopes are independent")
}

func TestGetMissingLeavesValue(t *testing.T) {
	s := NewMemory()

	locale := "en"
	ok, err := s.Get(ScopeLocal, KeyLocale, &locale)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "en", locale)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := NewMemory()

	require.NoError(t, s.Set(ScopeLocal, ScriptKey("abc"), "print(1)"))
	require.NoError(t, s.Delete(ScopeLocal, ScriptKey("abc")))
	require.NoError(t, s.Delete(ScopeLocal, ScriptKey("abc")))

	keys, err := s.Keys(ScopeLocal)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	for _, compress := range []bool{true, false} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()

			s, err := Open(fs, "/data", compress)
			require.NoError(t, err)
			require.NoError(t, s.Set(ScopeSync, KeyActiveScripts, []record{{Hash: "abc", Enabled: true}}))
			require.NoError(t, s.Set(ScopeLocal, ScriptKey("abc"), "console.log('hi')"))
			require.NoError(t, s.Set(ScopeLocal, KeyLocale, "de"))
			require.NoError(t, s.Delete(ScopeLocal, KeyLocale))
			require.NoError(t, s.Close())

			reopened, err := Open(fs, "/data", compress)
			require.NoError(t, err)
			defer reopened.Close()

			var scripts []record
			ok, err := reopened.Get(ScopeSync, KeyActiveScripts, &scripts)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "abc", scripts[0].Hash)

			var src string
			ok, err = reopened.Get(ScopeLocal, ScriptKey("abc"), &src)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "console.log('hi')", src)

			keys, err := reopened.Keys(ScopeLocal)
			require.NoError(t, err)
			assert.Equal(t, []string{"script_abc"}, keys)
		})
	}
}

func TestCompressedSnapshotOnDisk(t *testing.T) {
	fs := afero.NewMemMapFs()

	s, err := Open(fs, "/data", true)
	require.NoError(t, err)
	require.NoError(t, s.Set(ScopeSync, KeyLocalMods, []string{"Foo.js"}))

	raw, err := afero.ReadFile(fs, "/data/sync.json.zst")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, zstdMagic))

	exists, err := afero.Exists(fs, "/data/sync.json.zst.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temp snapshot must be renamed away")
}

func TestFileBackendReadsPlainSnapshotWhenCompressing(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/local.json", []byte(`{"locale":"fr"}`), 0o600))

	b, err := NewFileBackend(fs, "/data/local.json", true)
	require.NoError(t, err)
	defer b.Close()

	v, ok, err := b.Get("locale")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"fr"`, string(v))
}

func TestFileBackendRollsBackFailedWrite(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/data/sync.json", []byte(`{"a":1}`), 0o600))

	b, err := NewFileBackend(afero.NewReadOnlyFs(base), "/data/sync.json", false)
	require.NoError(t, err)
	defer b.Close()

	assert.Error(t, b.Set("b", []byte("2")))
	_, ok, err := b.Get("b")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, b.Delete("a"))
	v, ok, err := b.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))
}

func TestCorruptSnapshotFailsOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/sync.json", []byte("{nope"), 0o600))

	_, err := Open(fs, "/data", false)
	assert.Error(t, err)
}

func TestScriptKey(t *testing.T) {
	assert.Equal(t, "script_abc123", ScriptKey("abc123"))
	assert.True(t, IsScriptKey(ScriptKey("x")))
	assert.False(t, IsScriptKey(KeyLocale))
}

type closingBackend struct {
	*MemoryBackend
	err    error
	closed bool
}

func (b *closingBackend) Close() error {
	b.closed = true
	return b.err
}

func TestCloseClosesEveryScope(t *testing.T) {
	errSync := errors.New("sync flush failed")
	errLocal := errors.New("local flush failed")
	syncBackend := &closingBackend{MemoryBackend: NewMemoryBackend(), err: errSync}
	localBackend := &closingBackend{MemoryBackend: NewMemoryBackend(), err: errLocal}

	err := New(syncBackend, localBackend).Close()
	assert.True(t, syncBackend.closed)
	assert.True(t, localBackend.closed)
	assert.ErrorIs(t, err, errSync)
	assert.ErrorIs(t, err, errLocal)
}
