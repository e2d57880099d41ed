package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var ErrNotFound = errors.New("record not found")

const uniqueViolation = pq.ErrorCode("23505")

// uniqueFields maps unique index names from the migrations to form fields.
var uniqueFields = map[string]string{
	"ix_users_username": "username",
	"ix_users_email":    "email",
}

// DuplicateKeyError reports a unique constraint violation on Field.
type DuplicateKeyError struct {
	Field      string
	Constraint string
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("duplicate key violates unique constraint %q", e.Constraint)
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	return &DuplicateKeyError{
		Field:      uniqueFields[pqErr.Constraint],
		Constraint: pqErr.Constraint,
	}
}
