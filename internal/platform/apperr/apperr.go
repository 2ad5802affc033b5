// Package apperr defines the error taxonomy shared by all domain services.
// Every failure surfaced to a caller carries one of five kinds; anything
// without a kind is treated as an internal error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Kind int

const (
	KindUnknown Kind = iota
	// Unauthenticated means no actor could be resolved from the credential.
	Unauthenticated
	// Forbidden means the actor resolved but lacks role or ownership.
	Forbidden
	// NotFound means the entity is absent, surfaced only after authorization.
	NotFound
	// InvalidPrecondition means the operation's state precondition does not
	// hold (e.g. resolving a support lane that is not active).
	InvalidPrecondition
	// Validation means the input was rejected before any persistence attempt.
	Validation
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case InvalidPrecondition:
		return "invalid_precondition"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// E builds a tagged error.
func E(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Ef builds a tagged error with a formatted message.
func Ef(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindUnknown for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is lets tagged errors match sentinel comparisons on kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func httpStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidPrecondition:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error envelope with the status implied by its
// kind. Untagged errors become an opaque 500; the message is not leaked.
func Respond(c echo.Context, err error) error {
	kind := KindOf(err)
	if kind == KindUnknown {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
	return c.JSON(httpStatus(kind), map[string]string{"error": err.Error()})
}
