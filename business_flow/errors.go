// Package businessflow contains the core business logic and use cases for RMA ticket workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Record-related errors
	ErrRMANotFound     = errors.New("RMA request not found")
	ErrDuplicateToken  = errors.New("RMA token already exists")
	ErrTokenRequired   = errors.New("RMA token is required")
	ErrEmptySearchTerm = errors.New("search term is required")

	// Allocator-related errors
	ErrTokenAllocation = errors.New("failed to allocate RMA token")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsRMANotFound(err error) bool {
	return errors.Is(err, ErrRMANotFound)
}

func IsDuplicateToken(err error) bool {
	return errors.Is(err, ErrDuplicateToken)
}

func IsTokenRequired(err error) bool {
	return errors.Is(err, ErrTokenRequired)
}

func IsEmptySearchTerm(err error) bool {
	return errors.Is(err, ErrEmptySearchTerm)
}

func IsTokenAllocation(err error) bool {
	return errors.Is(err, ErrTokenAllocation)
}

func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
