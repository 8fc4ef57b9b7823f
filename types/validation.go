package types

import (
	"errors"
	"fmt"
)

type ValidationKind int

const (
	MissingField ValidationKind = iota + 1
	InvalidEnum
	EmptySelection
)

func (k ValidationKind) String() string {
	switch k {
	case MissingField:
		return "MissingField"
	case InvalidEnum:
		return "InvalidEnum"
	case EmptySelection:
		return "EmptySelection"
	default:
		return "Unknown"
	}
}

// ValidationError is raised before any request is built or sent.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value string
}

func NewMissingField(field string) *ValidationError {
	return &ValidationError{Kind: MissingField, Field: field}
}

func NewInvalidEnum(field, value string) *ValidationError {
	return &ValidationError{Kind: InvalidEnum, Field: field, Value: value}
}

func NewEmptySelection() *ValidationError {
	return &ValidationError{Kind: EmptySelection, Field: "backends"}
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		switch e.Field {
		case "instanceName":
			return "Instance name must be specified when scope is INSTANCE"
		case "digestPrefix":
			return "Digest prefix must be specified when scope is DIGEST_PREFIX"
		}
		return fmt.Sprintf("%s must be specified", e.Field)
	case InvalidEnum:
		if e.Value == "" {
			return fmt.Sprintf("%s must be specified", capitalize(e.Field))
		}
		return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
	case EmptySelection:
		return "At least one backend must be selected for flushing"
	default:
		return "validation failed"
	}
}

func AsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}
	return nil, false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
