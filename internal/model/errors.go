package model

import (
	"errors"
	"fmt"
)

// ValidationError reports bad or missing task fields.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

// NotFoundError reports a resource that does not exist for the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AuthenticationError reports a webhook call that failed verification.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// DeliveryError wraps a failed outbound send.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsValidationError reports whether err (or any error in its chain) is a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthenticationError.
func IsAuthError(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsDeliveryError reports whether err (or any error in its chain) is a DeliveryError.
func IsDeliveryError(err error) bool {
	var target *DeliveryError
	return errors.As(err, &target)
}
