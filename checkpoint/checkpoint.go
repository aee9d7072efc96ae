// Package checkpoint decorates errors with the location they passed through,
// which results in something similar to a stacktrace for a failed filesystem call.
// Each error added to a checkpoint can be checked by errors.Is and retrieved by errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps an error by a new checkpoint which records the caller.
// It returns nil, if err == nil.
func From(err error) error {
	if err == nil {
		return nil
	}

	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(nil, err)
}

// Wrap adds a checkpoint to prev and attaches err, which describes the checkpoint further.
// Returns nil if prev == nil, so it can wrap the result of a call unconditionally:
//  n, err := store.readBlock(index)
//  return checkpoint.Wrap(err, ErrCorrupt)
// Both prev and err stay visible to errors.Is and errors.As.
func Wrap(prev, err error) error {
	if prev == nil {
		return nil
	}

	if prev == io.EOF {
		return io.EOF
	}

	return newCheckpoint(prev, err)
}

// Errorf wraps prev like Wrap, describing the checkpoint by a formatted message.
func Errorf(prev error, format string, args ...interface{}) error {
	if prev == nil {
		return nil
	}

	return newCheckpoint(prev, fmt.Errorf(format, args...))
}

func newCheckpoint(prev, err error) *checkpoint {
	// Skip newCheckpoint and the exported helper.
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) location() string {
	if !e.callerOk {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

func (e *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString(e.location())
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}

	if e.prev == nil {
		return b.String()
	}

	b.WriteString("\n\t")
	b.WriteString(strings.ReplaceAll(e.prev.Error(), "\n", "\n\t"))
	return b.String()
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return errors.As(e.err, target)
}
