package scripts

import (
	"fmt"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
)

// Fetch failures. All of them match types.ErrFetch under errors.Is.
var (
	ErrStatus   = fmt.Errorf("%w: unexpected status", types.ErrFetch)
	ErrTooLarge = fmt.Errorf("%w: script exceeds size limit", types.ErrFetch)
	ErrEmpty    = fmt.Errorf("%w: empty script", types.ErrFetch)
	ErrNotText  = fmt.Errorf("%w: payload is not text", types.ErrFetch)
)

// StatusError records the upstream status of a failed fetch.
type StatusError struct {
	Hash string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.Hash, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }
