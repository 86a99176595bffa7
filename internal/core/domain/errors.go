package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRunNotFound    = errors.New("processing run not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidSchema  = errors.New("invalid form definition")
	ErrRunNotComplete = errors.New("processing run not completed")
	ErrTemporary      = errors.New("temporary failure")
	ErrUnauthorized   = errors.New("unauthorized")
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
