package blockfs

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"

	"github.com/aligator/blockfs/checkpoint"
	"github.com/stretchr/testify/require"
)

func TestErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{name: "no error", err: nil, want: 0},
		{name: "not found", err: ErrNotFound, want: syscall.ENOENT},
		{name: "wrapped", err: checkpoint.Wrap(ErrDiskFull, fmt.Errorf("write")), want: syscall.ENOSPC},
		{name: "decorated", err: checkpoint.Wrap(errors.New("block 7"), ErrCorrupt), want: syscall.EIO},
		{name: "nested", err: checkpoint.From(checkpoint.Wrap(ErrNameTooLong, errors.New("x"))), want: syscall.ENAMETOOLONG},
		{name: "plain errno", err: fmt.Errorf("host: %w", syscall.EROFS), want: syscall.EROFS},
		{name: "unknown", err: errors.New("something"), want: syscall.EIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Errno(tt.err))
		})
	}
}

func TestError_Is(t *testing.T) {
	require.ErrorIs(t, ErrNotFound, fs.ErrNotExist)
	require.ErrorIs(t, ErrAlreadyExists, fs.ErrExist)
	require.ErrorIs(t, ErrPermissionDenied, fs.ErrPermission)
	require.ErrorIs(t, checkpoint.Wrap(ErrNotFound, errors.New("lookup")), fs.ErrNotExist)

	// The kinds sharing a status code stay distinguishable.
	require.False(t, errors.Is(ErrRootFull, ErrDiskFull))
	require.False(t, errors.Is(ErrDiskFull, ErrDirectoryFull))
	require.Equal(t, Errno(ErrRootFull), Errno(ErrDiskFull))
}
