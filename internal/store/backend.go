package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// Backend is a flat byte-valued key space.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
}

// MemoryBackend keeps values for the life of the process.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (b *MemoryBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[key] = bytes.Clone(value)
	return nil
}

func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, key)
	return nil
}

func (b *MemoryBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return sortedKeys(b.data), nil
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// FileBackend holds a scope in memory and persists the whole snapshot to a
// single file after each mutation.
type FileBackend struct {
	fs       afero.Fs
	path     string
	compress bool

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewFileBackend opens (or creates) the snapshot at path. Compressed and
// plain snapshots are both readable regardless of compress.
func NewFileBackend(fs afero.Fs, path string, compress bool) (*FileBackend, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	b := &FileBackend{
		fs:       fs,
		path:     path,
		compress: compress,
		enc:      enc,
		dec:      dec,
		data:     make(map[string]json.RawMessage),
	}
	if err := b.load(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) load() error {
	raw, err := afero.ReadFile(b.fs, b.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if bytes.HasPrefix(raw, zstdMagic) {
		if raw, err = b.dec.DecodeAll(raw, nil); err != nil {
			return fmt.Errorf("decompress %s: %w", b.path, err)
		}
	}
	if err := sonic.Unmarshal(raw, &b.data); err != nil {
		return fmt.Errorf("decode %s: %w", b.path, err)
	}
	if b.data == nil {
		b.data = make(map[string]json.RawMessage)
	}
	return nil
}

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (b *FileBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, had := b.data[key]
	b.data[key] = bytes.Clone(value)
	if err := b.flush(); err != nil {
		if had {
			b.data[key] = prev
		} else {
			delete(b.data, key)
		}
		return err
	}
	return nil
}

func (b *FileBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, had := b.data[key]
	if !had {
		return nil
	}
	delete(b.data, key)
	if err := b.flush(); err != nil {
		b.data[key] = prev
		return err
	}
	return nil
}

func (b *FileBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return sortedKeys(b.data), nil
}

// Close releases the codec resources.
func (b *FileBackend) Close() error {
	b.enc.Close()
	b.dec.Close()
	return nil
}

// flush writes the snapshot to a sibling temp file and renames it into
// place. Callers hold mu.
func (b *FileBackend) flush() error {
	raw, err := sonic.Marshal(b.data)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if b.compress {
		raw = b.enc.EncodeAll(raw, nil)
	}

	dir := filepath.Dir(b.path)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := b.fs.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
