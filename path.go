package blockfs

import (
	"fmt"
	"strings"

	"github.com/aligator/blockfs/checkpoint"
)

// fsPath is an absolute path split into its components.
// The filesystem has exactly two levels, so only the first two components carry meaning:
//  /               root
//  /directory      a directory
//  /directory/name.ext
type fsPath struct {
	raw        string
	components []string

	directory string
	name      string
	extension string
}

// splitPath splits an absolute path without validating the names.
// A trailing slash is ignored.
func splitPath(raw string) (fsPath, error) {
	if !strings.HasPrefix(raw, "/") {
		return fsPath{}, checkpoint.Wrap(ErrInvalidName, fmt.Errorf("path %q is not absolute", raw))
	}

	p := fsPath{raw: raw}
	trimmed := strings.TrimSuffix(raw[1:], "/")
	if trimmed == "" {
		return p, nil
	}

	p.components = strings.Split(trimmed, "/")
	p.directory = p.components[0]
	if len(p.components) > 1 {
		p.name, p.extension, _ = strings.Cut(p.components[1], ".")
	}

	return p, nil
}

// parseLookup splits and validates a path which is only looked up.
// Paths with more than two levels cannot exist.
func parseLookup(raw string) (fsPath, error) {
	p, err := splitPath(raw)
	if err != nil {
		return fsPath{}, err
	}

	if err := p.validate(); err != nil {
		return fsPath{}, err
	}

	if p.depth() > 2 {
		return fsPath{}, checkpoint.Wrap(ErrNotFound, fmt.Errorf("path %q is nested too deep", raw))
	}

	return p, nil
}

func (p fsPath) depth() int {
	return len(p.components)
}

func (p fsPath) isRoot() bool {
	return p.depth() == 0
}

func (p fsPath) isDirectory() bool {
	return p.depth() == 1
}

// validate checks the length and characters of the directory, name and extension.
func (p fsPath) validate() error {
	if p.isRoot() {
		return nil
	}

	if err := validName(p.directory, maxNameLength); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("directory of %q", p.raw))
	}

	if p.depth() < 2 {
		return nil
	}

	if err := validName(p.name, maxNameLength); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("file name of %q", p.raw))
	}

	// A file without extension has no dot at all.
	if p.extension == "" && !strings.Contains(p.components[1], ".") {
		return nil
	}
	if err := validName(p.extension, maxExtensionLength); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("extension of %q", p.raw))
	}
	if strings.Contains(p.extension, ".") {
		return checkpoint.Wrap(ErrInvalidName, fmt.Errorf("extension of %q", p.raw))
	}

	return nil
}
