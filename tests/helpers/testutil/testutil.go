// Package testutil provides testing utilities and helpers for modbridge tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/stretchr/testify/mock"
)

// MockScriptSource is a mock implementation of registry.ScriptSource.
type MockScriptSource struct {
	mock.Mock
}

// Lookup mocks the Lookup method.
func (m *MockScriptSource) Lookup(ctx context.Context, hash string) (string, error) {
	args := m.Called(ctx, hash)
	return args.String(0), args.Error(1)
}

// MockResolver is a mock implementation of localmods.Resolver.
type MockResolver struct {
	mock.Mock
}

// Probe mocks the Probe method.
func (m *MockResolver) Probe(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

// Source mocks the Source method.
func (m *MockResolver) Source(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// StaticResolver serves bundled mods from a map.
type StaticResolver struct {
	mu   sync.RWMutex
	mods map[string]string
}

// NewStaticResolver creates a resolver over name -> source.
func NewStaticResolver(mods map[string]string) *StaticResolver {
	r := &StaticResolver{mods: make(map[string]string, len(mods))}
	for k, v := range mods {
		r.mods[k] = v
	}
	return r
}

// Set adds or replaces a mod.
func (r *StaticResolver) Set(name, src string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods[name] = src
}

func (r *StaticResolver) Probe(ctx context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.mods[name]
	return ok, nil
}

func (r *StaticResolver) Source(ctx context.Context, name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.mods[name]
	if !ok {
		return "", fmt.Errorf("local mod %s: %w", name, types.ErrNotFound)
	}
	return src, nil
}

// StaticScripts resolves script hashes from a map.
type StaticScripts map[string]string

func (s StaticScripts) Lookup(ctx context.Context, hash string) (string, error) {
	src, ok := s[hash]
	if !ok {
		return "", fmt.Errorf("%w: %s", types.ErrFetch, hash)
	}
	return src, nil
}

// Candidates builds manifest entries from names, using the name as label.
func Candidates(names ...string) []types.LocalModCandidate {
	out := make([]types.LocalModCandidate, len(names))
	for i, n := range names {
		out[i] = types.LocalModCandidate{Name: n, DisplayName: n}
	}
	return out
}

// AssertSuccess is a helper to assert a successful response.
func AssertSuccess(t *testing.T, resp *protocol.Response) {
	t.Helper()
	if resp == nil {
		t.Fatal("Response is nil")
	}
	if !resp.Success {
		t.Fatalf("Expected success, got error: %s", resp.Error)
	}
}

// AssertFailure is a helper to assert a failed response with a message.
func AssertFailure(t *testing.T, resp *protocol.Response) {
	t.Helper()
	if resp == nil {
		t.Fatal("Response is nil")
	}
	if resp.Success {
		t.Fatal("Expected error, got success")
	}
	if resp.Error == "" {
		t.Fatal("Expected error message, got empty")
	}
}

// DecodeData asserts success and decodes the response payload into v.
func DecodeData(t *testing.T, resp *protocol.Response, v interface{}) {
	t.Helper()
	AssertSuccess(t, resp)
	if err := resp.Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// Message builds a protocol message, failing the test on encode errors.
func Message(t *testing.T, action protocol.Action, data interface{}) protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(action, data)
	if err != nil {
		t.Fatalf("encode %s: %v", action, err)
	}
	return msg
}
