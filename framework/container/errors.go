package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnbound is returned when a key has no value, no resolver and no default.
	ErrUnbound = errors.New("no binding registered")

	// ErrImmutable is returned when writing to an immutable binding.
	ErrImmutable = errors.New("binding is immutable")

	// ErrBound is returned when an immutable binding is requested for a key
	// that already holds a value or a resolver.
	ErrBound = errors.New("binding already holds a value or resolver")

	// ErrCycle is returned when a resolution chain revisits a key or type.
	ErrCycle = errors.New("circular dependency")

	// ErrNoResolver is returned by Derive when there is nothing to wrap.
	ErrNoResolver = errors.New("no resolver registered")

	// ErrAlreadyResolved is returned when a resolver is registered or derived
	// for a key whose value is already cached.
	ErrAlreadyResolved = errors.New("value already resolved")

	// ErrDefaultsFrozen is returned when providing a default after the
	// defaults table has been read.
	ErrDefaultsFrozen = errors.New("defaults are frozen")

	// ErrType is returned when a stored value does not have the key's type.
	ErrType = errors.New("value has unexpected type")
)

// ResolutionError describes a failed container operation on a single key or
// type. Chain holds the labels currently being resolved, outermost first.
type ResolutionError struct {
	Label string
	Chain []string
	Err   error
}

func (e *ResolutionError) Error() string {
	if errors.Is(e.Err, ErrCycle) {
		path := append(append([]string{}, e.Chain...), e.Label)
		return fmt.Sprintf("container: %v: %s", e.Err, strings.Join(path, " -> "))
	}
	if len(e.Chain) > 0 {
		return fmt.Sprintf("container: [%s] (via %s): %v", e.Label, strings.Join(e.Chain, " -> "), e.Err)
	}
	return fmt.Sprintf("container: [%s]: %v", e.Label, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func newError(h Handle, chain []string, err error) *ResolutionError {
	return &ResolutionError{Label: h.Label(), Chain: chain, Err: err}
}

// wrapError annotates resolver failures with the key being resolved.
// Resolution errors pass through untouched so the innermost chain survives.
func wrapError(h Handle, err error) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	return fmt.Errorf("container: resolving [%s]: %w", h.Label(), err)
}
