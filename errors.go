package godbf

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedAccessMode = errors.New("unsupported access mode")
	ErrCorruptHeader         = errors.New("corrupt header")
	ErrSchemaOverflow        = fmt.Errorf("%w: field span exceeds record length", ErrCorruptHeader)
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")
	ErrIO                    = errors.New("storage I/O error")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrReadOnly              = errors.New("table opened read-only")

	// ErrLossyWrite is returned when the value was stored but was truncated or
	// reformatted so it no longer reads back as written.
	ErrLossyWrite = errors.New("value truncated to fit field")
)

// ioFailure wraps err as ErrIO and reports the message to the error sink.
func (t *Table) ioFailure(format string, args ...any) error {
	err := fmt.Errorf("%w: "+format, append([]any{ErrIO}, args...)...)
	t.hooks.Error(err.Error())
	return err
}

// limitExceeded wraps ErrResourceLimitExceeded and reports the message to the
// error sink.
func (t *Table) limitExceeded(format string, args ...any) error {
	err := fmt.Errorf("%w: "+format, append([]any{ErrResourceLimitExceeded}, args...)...)
	t.hooks.Error(err.Error())
	return err
}
