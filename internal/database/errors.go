package database

import (
	"errors"
	"strings"
)

var (
	ErrUniqueViolation = errors.New("unique constraint violated")
	ErrNotNull         = errors.New("not null constraint failed")
	ErrCheckConstraint = errors.New("check constraint failed")
)

// ClassifyError maps SQLite constraint failures to sentinel errors so callers
// can use errors.Is. Other errors are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return errors.Join(ErrUniqueViolation, err)
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return errors.Join(ErrNotNull, err)
	case strings.Contains(msg, "CHECK constraint failed"):
		return errors.Join(ErrCheckConstraint, err)
	}
	return err
}
