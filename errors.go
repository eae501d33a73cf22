package tunnelify

import (
	"fmt"

	"github.com/pkg/errors"
)

// Configuration errors. They are returned synchronously from New, wrapped
// with the offending value.
var (
	ErrMissingHost         = errors.New("host is required")
	ErrVerboseQuiet        = errors.New("cannot be both verbose and quiet")
	ErrConflictingForwards = errors.New("only one of port, ports or tunnels may be set")
	ErrNoForwards          = errors.New("one of port, ports or tunnels is required")
	ErrInvalidForward      = errors.New("invalid forward")
)

var (
	// ErrEstablish is matched by the error Open returns when ssh exits non-zero.
	ErrEstablish = errors.New("unable to establish tunnel(s); retry with verbose for diagnostics")

	// ErrStarting is returned by Open and Close while an Open is in flight.
	ErrStarting = errors.New("tunnel is already starting")

	// ErrClosing is returned by Open and Close while a Close is in flight.
	ErrClosing = errors.New("tunnel is closing")
)

// ExitError reports a non-zero exit of the ssh client during Open.
type ExitError struct {
	Host string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v (host %s, ssh exit status %d)", ErrEstablish, e.Host, e.Code)
}

func (e *ExitError) Unwrap() error {
	return ErrEstablish
}
