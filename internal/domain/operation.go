package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOperation is returned when an operation name is not one of
// Insert, Update or Upsert.
var ErrInvalidOperation = errors.New("invalid operation type")

// Operation is the kind of write the backend performs for an import.
type Operation string

const (
	OperationInsert Operation = "Insert"
	OperationUpdate Operation = "Update"
	OperationUpsert Operation = "Upsert"
)

// Operations lists the supported operations in display order.
var Operations = []Operation{OperationInsert, OperationUpdate, OperationUpsert}

// ParseOperation resolves a case-insensitive operation name.
func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations {
		if strings.EqualFold(strings.TrimSpace(s), string(op)) {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

// Valid reports whether op is a supported operation.
func (op Operation) Valid() bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

// RequiresUniqueKey reports whether a submission must carry a unique key.
func (op Operation) RequiresUniqueKey() bool { return op == OperationUpdate }

// AllowsUniqueKey reports whether the unique-key selector applies at all.
func (op Operation) AllowsUniqueKey() bool {
	return op == OperationUpdate || op == OperationUpsert
}

// PastTense is used in user-facing completion messages ("inserted").
func (op Operation) PastTense() string {
	switch op {
	case OperationInsert:
		return "inserted"
	case OperationUpdate:
		return "updated"
	case OperationUpsert:
		return "upserted"
	default:
		return "processed"
	}
}
