package adapter

import (
	"errors"
	"fmt"

	"github.com/binarjoin/syncengine/models"
)

var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInternalServerError = errors.New("internal server error")
	ErrBadGateway          = errors.New("bad gateway")
)

// TransportError wraps a failed server call with the error class the retry
// machinery dispatches on.
type TransportError struct {
	Class models.ErrorClass
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Classify extracts the error class from err, walking the wrap chain.
// Errors that never passed through the adapter come back as unknown.
func Classify(err error) models.ErrorClass {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Class
	}
	return models.ErrorClassUnknown
}
