package gateway

import (
	"errors"
	"fmt"
)

// Kind separates the failure classes the sync core treats differently:
// transport and validation failures propagate from mutations, business
// rejections carry the backend's message, and callers treat "fetched but
// malformed" identically to "not fetched".
type Kind string

const (
	KindTransport  Kind = "transport"
	KindValidation Kind = "validation"
	KindBusiness   Kind = "business"
)

// Error is the single typed error every gateway operation fails with.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gateway: %s (%s, status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == kind
}
