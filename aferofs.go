package blockfs

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/spf13/afero"
)

// AferoFs exposes an Fs as afero.Fs, which is the shape a mount layer or any afero user expects.
// Names are interpreted relative to the root, so "docs/readme.txt" and "/docs/readme.txt" are the same file.
type AferoFs struct {
	fs *Fs
}

var _ afero.Fs = (*AferoFs)(nil)

// NewAferoFs wraps fs.
func NewAferoFs(fs *Fs) *AferoFs {
	return &AferoFs{fs: fs}
}

// IOFS returns the filesystem as read-only io/fs.FS.
func (a *AferoFs) IOFS() fs.FS {
	return afero.NewIOFS(a)
}

// absolute turns any afero or io/fs name into an absolute, clean path.
func absolute(name string) string {
	return path.Clean("/" + name)
}

func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &os.PathError{Op: op, Path: name, Err: err}
}

func (a *AferoFs) Create(name string) (afero.File, error) {
	return a.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// Mkdir creates a directory below the root. perm is ignored.
func (a *AferoFs) Mkdir(name string, perm os.FileMode) error {
	return pathError("mkdir", name, a.fs.MakeDirectory(absolute(name)))
}

// MkdirAll creates a directory below the root if it does not exist yet.
// As there is only one directory level, it fails with ErrPermissionDenied for deeper paths.
func (a *AferoFs) MkdirAll(name string, perm os.FileMode) error {
	attributes, err := a.fs.GetAttributes(absolute(name))
	if err == nil {
		if attributes.IsDir() {
			return nil
		}
		return pathError("mkdir", name, ErrNotDirectory)
	}

	return a.Mkdir(name, perm)
}

func (a *AferoFs) Open(name string) (afero.File, error) {
	return a.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile supports os.O_CREATE, os.O_EXCL, os.O_TRUNC and os.O_APPEND. perm is ignored.
func (a *AferoFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	p := absolute(name)
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0

	attributes, err := a.fs.GetAttributes(p)
	switch {
	case errors.Is(err, ErrNotFound) && flag&os.O_CREATE != 0:
		if err := a.fs.CreateFile(p); err != nil {
			return nil, pathError("open", name, err)
		}
		if attributes, err = a.fs.GetAttributes(p); err != nil {
			return nil, pathError("open", name, err)
		}
	case err != nil:
		return nil, pathError("open", name, err)
	case flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, pathError("open", name, ErrAlreadyExists)
	}

	if attributes.IsDir() && writable {
		return nil, pathError("open", name, ErrIsDirectory)
	}

	if flag&os.O_TRUNC != 0 && writable && attributes.Size > 0 {
		if err := a.fs.Truncate(p, 0); err != nil {
			return nil, pathError("open", name, err)
		}
		attributes.Size = 0
	}

	return &File{
		fs:          a.fs,
		path:        p,
		isDirectory: attributes.IsDir(),
		readOnly:    !writable,
		appendOnly:  flag&os.O_APPEND != 0,
		stat:        attributes,
	}, nil
}

// Remove removes a file or an empty directory.
func (a *AferoFs) Remove(name string) error {
	p := absolute(name)
	attributes, err := a.fs.GetAttributes(p)
	if err != nil {
		return pathError("remove", name, err)
	}

	if attributes.IsDir() {
		return pathError("remove", name, a.fs.RemoveDirectory(p))
	}
	return pathError("remove", name, a.fs.RemoveFile(p))
}

// RemoveAll removes a file or a directory including its files. Removing the root removes all directories.
// A missing path is no error.
func (a *AferoFs) RemoveAll(name string) error {
	p := absolute(name)
	attributes, err := a.fs.GetAttributes(p)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return pathError("removeall", name, err)
	}

	if !attributes.IsDir() {
		return pathError("removeall", name, a.fs.RemoveFile(p))
	}

	entries, err := a.fs.ListAttributes(p)
	if err != nil {
		return pathError("removeall", name, err)
	}

	for _, entry := range entries {
		if err := a.RemoveAll(path.Join(p, entry.Name)); err != nil {
			return err
		}
	}

	if p == "/" {
		return nil
	}
	return pathError("removeall", name, a.fs.RemoveDirectory(p))
}

// Rename is not supported.
func (a *AferoFs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: ErrPermissionDenied}
}

func (a *AferoFs) Stat(name string) (os.FileInfo, error) {
	attributes, err := a.fs.GetAttributes(absolute(name))
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return attributes.FileInfo(), nil
}

func (a *AferoFs) Name() string {
	return "blockfs"
}

// Chmod is not supported, as permissions are not stored.
func (a *AferoFs) Chmod(name string, mode os.FileMode) error {
	return pathError("chmod", name, ErrPermissionDenied)
}

// Chown is not supported, as ownership is not stored.
func (a *AferoFs) Chown(name string, uid, gid int) error {
	return pathError("chown", name, ErrPermissionDenied)
}

// Chtimes is not supported, the write time is set by writes only.
func (a *AferoFs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return pathError("chtimes", name, ErrPermissionDenied)
}
