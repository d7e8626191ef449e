package localmods

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"
)

// Resolver locates bundled mod sources.
type Resolver interface {
	// Probe reports whether name is present. It is the HEAD-equivalent
	// used before a mod enters the registry.
	Probe(ctx context.Context, name string) (bool, error)
	Source(ctx context.Context, name string) (string, error)
}

// ValidateName accepts clean, relative, slash-separated paths.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty mod name: %w", types.ErrInvalid)
	case strings.ContainsRune(name, '\\'), path.IsAbs(name), path.Clean(name) != name:
		return fmt.Errorf("mod name %q: %w", name, types.ErrInvalid)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return fmt.Errorf("mod name %q escapes the mods directory: %w", name, types.ErrInvalid)
		}
	}
	return nil
}

// HTTPResolver resolves mods served under a base URL.
type HTTPResolver struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPResolver creates a resolver for mods under baseURL.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPResolver{
		client:  resty.New().SetTimeout(timeout).SetHeader("User-Agent", "modbridge/1.0"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// URL returns the address of a mod.
func (r *HTTPResolver) URL(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return r.baseURL + "/" + strings.Join(parts, "/")
}

func (r *HTTPResolver) Probe(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	resp, err := r.client.R().SetContext(ctx).Head(r.URL(name))
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", name, err)
	}
	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return true, nil
	case code == http.StatusNotFound, code == http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("probe %s: status %d", name, code)
	}
}

func (r *HTTPResolver) Source(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	resp, err := r.client.R().SetContext(ctx).Get(r.URL(name))
	if err != nil {
		return "", fmt.Errorf("%w: load %s: %w", types.ErrFetch, name, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return "", fmt.Errorf("local mod %s: %w", name, types.ErrNotFound)
	case code < 200 || code >= 300:
		return "", fmt.Errorf("%w: load %s: status %d", types.ErrFetch, name, code)
	}
	return resp.String(), nil
}

// FSResolver resolves mods from a directory on an afero filesystem.
type FSResolver struct {
	fs   afero.Fs
	root string
}

// NewFSResolver creates a resolver rooted at root.
func NewFSResolver(fs afero.Fs, root string) *FSResolver {
	return &FSResolver{fs: fs, root: root}
}

func (r *FSResolver) Probe(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	info, err := r.fs.Stat(r.path(name))
	if err != nil {
		return false, nil
	}
	return !info.IsDir(), nil
}

func (r *FSResolver) Source(ctx context.Context, name string) (string, error) {
	if ok, err := r.Probe(ctx, name); err != nil {
		return "", err
	} else if !ok {
		return "", fmt.Errorf("local mod %s: %w", name, types.ErrNotFound)
	}
	data, err := afero.ReadFile(r.fs, r.path(name))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", types.ErrFetch, name, err)
	}
	return string(data), nil
}

func (r *FSResolver) path(name string) string {
	return filepath.Join(r.root, filepath.FromSlash(name))
}
