// Package apperr classifies errors into the categories the HTTP layer
// maps to status codes. Wrap at the point of failure, classify once,
// translate at the edge.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindBackend Kind = iota
	KindClient
	KindNotFound
	KindUnsupported
	KindConflict
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Client(format string, args ...any) error {
	return &Error{Kind: KindClient, Msg: fmt.Sprintf(format, args...)}
}

func ClientWrap(err error, msg string) error {
	return &Error{Kind: KindClient, Msg: msg, Err: err}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Unsupported(format string, args ...any) error {
	return &Error{Kind: KindUnsupported, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func Backend(format string, args ...any) error {
	return &Error{Kind: KindBackend, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the classification of err, defaulting to KindBackend
// for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindBackend
}

func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindClient:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnsupported:
		return http.StatusUnsupportedMediaType
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
