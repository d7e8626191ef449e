package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Len(t, id1.String(), 26)
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{"req", "page", "bridge"} {
		id := gen.GenerateWithPrefix(prefix)

		assert.True(t, strings.HasPrefix(id, prefix+"_"), id)
		assert.True(t, IsValid(id), id)
	}
}

func TestTypedIDs(t *testing.T) {
	req := NewRequestID()
	assert.True(t, strings.HasPrefix(req.String(), "req_"))
	assert.True(t, IsValid(req.String()))

	tab := NewTabID()
	require.True(t, strings.HasPrefix(tab.String(), "tab_"))
	_, err := uuid.Parse(strings.TrimPrefix(tab.String(), "tab_"))
	assert.NoError(t, err)
	assert.NotEqual(t, tab, NewTabID())
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(NewGenerator().GenerateString()))

	for _, id := range []string{"", "invalid", "1234567890", "zzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		assert.False(t, IsValid(id), id)
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now()
	id := NewGenerator().GenerateString()
	after := time.Now()

	ts, err := Timestamp(id)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, ts.UnixMilli(), before.UnixMilli())
	assert.LessOrEqual(t, ts.UnixMilli(), after.UnixMilli())
}

func TestCorrelatorIsMonotonic(t *testing.T) {
	c := NewCorrelator("page")

	prev := c.Next()
	for i := 0; i < 1000; i++ {
		next := c.Next()
		require.Greater(t, next, prev, "correlation IDs must increase within one context")
		prev = next
	}
}

func TestCorrelatorConcurrentUnique(t *testing.T) {
	c := NewCorrelator("bridge")

	const goroutines = 50
	const perGoroutine = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := c.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestDefaultGenerator(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func BenchmarkCorrelatorNext(b *testing.B) {
	c := NewCorrelator("page")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Next()
	}
}
