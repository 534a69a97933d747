package routing

import (
	"errors"
	"fmt"
)

// ErrRouteNotFound is returned by Generate for an unknown route name.
var ErrRouteNotFound = errors.New("routing: route not found")

// RedirectError signals that the request should be redirected instead of
// served, e.g. because its path carried a trailing slash. The hosting layer
// turns it into an actual response.
type RedirectError struct {
	URL    string
	Status int
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("routing: redirect (%d) to %s", e.Status, e.URL)
}
