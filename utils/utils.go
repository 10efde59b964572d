// Package utils provides utility functions for the application.
package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

// NullableString trims the input and returns nil for empty values so that
// absent form fields and spreadsheet cells are stored as NULL, never as
// sentinel text like "None" or "nan".
func NullableString(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	switch strings.ToLower(trimmed) {
	case "none", "nan", "null":
		return nil
	}
	return &trimmed
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
