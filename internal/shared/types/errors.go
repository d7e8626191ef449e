package types

import "errors"

// Error taxonomy shared by every component. Wrap these with fmt.Errorf and
// test with errors.Is; they never cross a context boundary as panics.
var (
	// ErrFetch: script content could not be resolved (network, status, size).
	ErrFetch = errors.New("fetch failed")
	// ErrNotFound: a hash or name is absent from the registry.
	ErrNotFound = errors.New("not found")
	// ErrTimeout: a page request went unanswered.
	ErrTimeout = errors.New("request timed out")
	// ErrExecution: mod source threw or exceeded its time budget.
	ErrExecution = errors.New("mod execution failed")
	// ErrTransport: a message could not be decoded.
	ErrTransport = errors.New("malformed message")
	// ErrInvalid: a caller supplied an unusable argument.
	ErrInvalid = errors.New("invalid argument")
)
