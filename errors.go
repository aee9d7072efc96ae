package blockfs

import (
	"errors"
	"syscall"
)

// Error is a filesystem error kind. Each kind maps to exactly one host status code.
type Error struct {
	msg   string
	errno syscall.Errno
}

func (e *Error) Error() string {
	return e.msg
}

// Is lets the kinds match the io/fs sentinels, e.g. errors.Is(ErrNotFound, fs.ErrNotExist).
func (e *Error) Is(target error) bool {
	return e.errno.Is(target)
}

// Errno returns the host status code of the kind.
func (e *Error) Errno() syscall.Errno {
	return e.errno
}

// These errors may be returned by all filesystem calls.
var (
	ErrNotFound         = &Error{"no such file or directory", syscall.ENOENT}
	ErrNameTooLong      = &Error{"name too long", syscall.ENAMETOOLONG}
	ErrInvalidName      = &Error{"invalid name", syscall.EINVAL}
	ErrAlreadyExists    = &Error{"file exists", syscall.EEXIST}
	ErrPermissionDenied = &Error{"operation not permitted", syscall.EPERM}
	ErrRootFull         = &Error{"root directory table is full", syscall.ENOSPC}
	ErrDirectoryFull    = &Error{"directory table is full", syscall.ENOSPC}
	ErrDiskFull         = &Error{"no free block left", syscall.ENOSPC}
	ErrInvalidOffset    = &Error{"offset beyond end of file", syscall.EFBIG}
	ErrIsDirectory      = &Error{"is a directory", syscall.EISDIR}
	ErrNotDirectory     = &Error{"not a directory", syscall.ENOTDIR}
	ErrNotEmpty         = &Error{"directory not empty", syscall.ENOTEMPTY}
	ErrOutOfRange       = &Error{"block index out of range", syscall.EIO}
	ErrCorrupt          = &Error{"filesystem is corrupt", syscall.EIO}
	ErrClosed           = &Error{"filesystem is closed", syscall.EBADF}
)

// Errno maps any error returned by this package to the status code a mount layer reports.
// A nil error maps to 0, errors of unknown origin to EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var fsErr *Error
	if errors.As(err, &fsErr) {
		return fsErr.errno
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return syscall.EIO
}
