package mp4

import (
	"errors"

	"m7s.live/mp4/pkg/box"
)

var (
	ErrMalformed      = box.ErrMalformed
	ErrTypeMismatch   = box.ErrTypeMismatch
	ErrOutOfRange     = box.ErrOutOfRange
	ErrNotFound       = box.ErrNotFound
	ErrReadOnly       = box.ErrReadOnly
	ErrDuplicateField = box.ErrDuplicateField
	ErrInvalidValue   = box.ErrInvalidValue

	ErrBufferTooSmall     = errors.New("buffer too small")
	ErrInaccessibleSource = errors.New("sample source inaccessible")
	ErrInvalidOperation   = errors.New("invalid operation")
)
