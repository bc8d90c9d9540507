package box

import "errors"

var (
	ErrMalformed      = errors.New("malformed structure")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrOutOfRange     = errors.New("out of range")
	ErrNotFound       = errors.New("no such field")
	ErrReadOnly       = errors.New("read-only field")
	ErrDuplicateField = errors.New("duplicate field name")
	ErrInvalidValue   = errors.New("invalid value")
)
