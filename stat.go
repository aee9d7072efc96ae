package blockfs

import (
	"os"
	"time"
)

// Kind tells directories and regular files apart.
type Kind uint8

const (
	KindDirectory Kind = iota
	KindRegularFile
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Attributes are the result of GetAttributes.
type Attributes struct {
	Kind Kind
	// Name is the base name, name.ext for files. The root is named "/".
	Name string
	// Size is the byte length of a file. Directories have size 0.
	Size    int64
	ModTime time.Time

	// StartBlock is the directory block or the first data block.
	StartBlock uint32
}

// IsDir reports whether the attributes describe the root or a directory.
func (a Attributes) IsDir() bool {
	return a.Kind == KindDirectory
}

// FileInfo returns the attributes as os.FileInfo.
func (a Attributes) FileInfo() os.FileInfo {
	return attributesFileInfo{a}
}

type attributesFileInfo struct {
	attributes Attributes
}

func (a attributesFileInfo) Name() string {
	return a.attributes.Name
}

func (a attributesFileInfo) Size() int64 {
	return a.attributes.Size
}

// Mode reports fixed permissions. Ownership and permissions are not stored.
func (a attributesFileInfo) Mode() os.FileMode {
	if a.IsDir() {
		return os.ModeDir | 0755
	}
	return 0666
}

func (a attributesFileInfo) ModTime() time.Time {
	return a.attributes.ModTime
}

func (a attributesFileInfo) IsDir() bool {
	return a.attributes.IsDir()
}

func (a attributesFileInfo) Sys() interface{} {
	return a.attributes
}
