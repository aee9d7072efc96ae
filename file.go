package blockfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/blockfs/checkpoint"
	"github.com/spf13/afero"
)

// These errors may occur while processing a file.
var (
	ErrReadFile  = errors.New("could not read file completely")
	ErrWriteFile = errors.New("could not write file completely")
	ErrSeekFile  = errors.New("could not seek inside of the file")
	ErrReadDir   = errors.New("could not read the directory")
)

// fileFs provides all methods needed from the filesystem for File.
// It mainly exists to be able to mock the Fs in tests.
// Generated mock using mockgen:
//  mockgen -source=file.go -destination=file_mock.go -package blockfs
type fileFs interface {
	GetAttributes(name string) (Attributes, error)
	ListAttributes(name string) ([]Attributes, error)
	Read(name string, offset int64, buf []byte) (int, error)
	Write(name string, offset int64, data []byte) (int, error)
	Truncate(name string, size int64) error
	Flush(name string) error
}

// File is an open file or directory of an AferoFs. It implements afero.File.
type File struct {
	fs   fileFs
	path string

	isDirectory bool
	readOnly    bool
	appendOnly  bool

	stat   Attributes
	offset int64
}

var _ afero.File = (*File)(nil)

func (f *File) checkOpen(op string) error {
	if f.fs == nil {
		return &os.PathError{Op: op, Path: f.path, Err: os.ErrClosed}
	}
	return nil
}

func (f *File) Close() error {
	if err := f.checkOpen("close"); err != nil {
		return err
	}

	f.fs = nil
	f.isDirectory = false
	f.readOnly = false
	f.appendOnly = false
	f.stat = Attributes{}
	f.offset = 0

	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if err := f.checkOpen("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err = f.readAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if err := f.checkOpen("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err = f.readAt(p, off)
	if err == nil && n < len(p) {
		return n, io.EOF
	}
	return n, err
}

func (f *File) readAt(p []byte, off int64) (int, error) {
	if f.isDirectory {
		return 0, checkpoint.Wrap(ErrIsDirectory, ErrReadFile)
	}

	n, err := f.fs.Read(f.path, off, p)
	// Reading behind the end of the file is no error for a reader.
	if errors.Is(err, ErrInvalidOffset) || (err == nil && n == 0) {
		return n, io.EOF
	}
	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects all Read and Write operations except ReadAt and WriteAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an afero.ErrOutOfRange error if the offset is out of range, as files cannot have holes.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if err := f.checkOpen("seek"); err != nil {
		return 0, err
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = f.stat.Size + offset
	default:
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	if offset < 0 || offset > f.stat.Size {
		return 0, checkpoint.Wrap(afero.ErrOutOfRange, fmt.Errorf("%w, offset: %v, whence: %v", ErrSeekFile, offset, whence))
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	if err := f.checkOpen("write"); err != nil {
		return 0, err
	}

	if f.appendOnly {
		attributes, err := f.fs.GetAttributes(f.path)
		if err != nil {
			return 0, checkpoint.Wrap(err, ErrWriteFile)
		}
		f.offset = attributes.Size
	}

	n, err = f.writeAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	if err := f.checkOpen("write"); err != nil {
		return 0, err
	}
	if f.appendOnly {
		return 0, checkpoint.Wrap(ErrPermissionDenied, fmt.Errorf("%w: WriteAt on a file opened with O_APPEND", ErrWriteFile))
	}

	return f.writeAt(p, off)
}

func (f *File) writeAt(p []byte, off int64) (int, error) {
	if f.isDirectory {
		return 0, checkpoint.Wrap(ErrIsDirectory, ErrWriteFile)
	}
	if f.readOnly {
		return 0, checkpoint.Wrap(ErrPermissionDenied, ErrWriteFile)
	}

	n, err := f.fs.Write(f.path, off, p)
	if end := off + int64(n); end > f.stat.Size {
		f.stat.Size = end
	}
	if err != nil {
		return n, checkpoint.Wrap(err, ErrWriteFile)
	}
	return n, nil
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}

// Name returns the path the file was opened with.
func (f *File) Name() string {
	return f.path
}

// Readdir reads the contents of a directory.
// With count > 0 at most count entries are returned and io.EOF once no entries are left.
// With count <= 0 all remaining entries are returned.
// May return ErrNotDirectory if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if err := f.checkOpen("readdir"); err != nil {
		return nil, err
	}
	if !f.isDirectory {
		return nil, checkpoint.Wrap(ErrNotDirectory, ErrReadDir)
	}

	content, err := f.fs.ListAttributes(f.path)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	// The table may have shrunk since the last call.
	start := int(f.offset)
	if start > len(content) {
		start = len(content)
	}
	content = content[start:]

	if count > 0 {
		if len(content) == 0 {
			return nil, io.EOF
		}
		if len(content) > count {
			content = content[:count]
		}
	}

	f.offset = int64(start + len(content))

	result := make([]os.FileInfo, len(content))
	for i := range content {
		result[i] = content[i].FileInfo()
	}

	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	return names, nil
}

// Stat returns the current attributes of the file.
func (f *File) Stat() (os.FileInfo, error) {
	if err := f.checkOpen("stat"); err != nil {
		return nil, err
	}

	attributes, err := f.fs.GetAttributes(f.path)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	f.stat = attributes
	return attributes.FileInfo(), nil
}

// Sync does nothing except checking that the file still exists, as every write is persisted immediately.
func (f *File) Sync() error {
	if err := f.checkOpen("sync"); err != nil {
		return err
	}
	return checkpoint.From(f.fs.Flush(f.path))
}

func (f *File) Truncate(size int64) error {
	if err := f.checkOpen("truncate"); err != nil {
		return err
	}
	if f.isDirectory {
		return checkpoint.From(ErrIsDirectory)
	}
	if f.readOnly {
		return checkpoint.From(ErrPermissionDenied)
	}

	if err := f.fs.Truncate(f.path, size); err != nil {
		return checkpoint.From(err)
	}

	f.stat.Size = size
	return nil
}
