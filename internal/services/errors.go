package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrCredentialsMissing = errors.New("DAV credentials are not configured")
	ErrAddressBookMissing = errors.New("DAV address book URL is not configured")
)

// ValidationError reports input rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
