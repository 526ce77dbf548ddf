package recordstore

import (
	"errors"
	"fmt"
)

// TransportError is a failed exchange with the record store: either a
// non-2xx response or a request that never produced one. Callers surface it
// and leave their cached state untouched.
type TransportError struct {
	Status  int // 0 when no response was received
	Message string
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("record store unreachable: %s", e.Message)
	}
	return fmt.Sprintf("record store returned %d: %s", e.Status, e.Message)
}

// IsAuthorization reports whether the store rejected the bearer credential.
// No recovery is attempted for these; they read like any other failure.
func (e *TransportError) IsAuthorization() bool {
	return e.Status == 401 || e.Status == 403
}

// AsTransport unwraps err into a TransportError when it is one.
func AsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ValidationError reports a client-side required-field failure. It blocks
// the submission before any network call is made; the store remains the
// final authority on what it accepts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
