package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthenticated   = errors.New("missing api credential")
	ErrProcessingFailed  = errors.New("provider processing failed")
	ErrProcessingTimeout = errors.New("provider processing timed out")
	ErrUnexpectedState   = errors.New("unexpected provider state")
	ErrInvalidStatus     = errors.New("invalid video status")
	ErrDuplicate         = errors.New("duplicate key")
	ErrStore             = errors.New("store failure")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
