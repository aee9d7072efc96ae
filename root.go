package blockfs

import (
	"errors"
	"fmt"

	"github.com/aligator/blockfs/checkpoint"
)

// readRoot loads block 0 and verifies its checksum.
func (fs *Fs) readRoot() (*rootTable, error) {
	block, err := fs.store.readBlock(rootBlock)
	if err != nil {
		return nil, err
	}

	root, err := decodeRoot(block, fs.geo.maxDirectories)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrCorrupt)
	}

	if sum := rootChecksum(block); sum != root.header.Checksum {
		return nil, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("root checksum %08x, stored %08x", sum, root.header.Checksum))
	}

	return root, nil
}

// writeRoot persists the root table, updating the directory count and the checksum.
func (fs *Fs) writeRoot(root *rootTable) error {
	if len(root.entries) > fs.geo.maxDirectories {
		return checkpoint.From(ErrRootFull)
	}
	return fs.store.writeBlock(rootBlock, encodeRoot(fs.geo.blockSize, root))
}

// findDirectory returns the block and the table of the named directory.
func (fs *Fs) findDirectory(name string) (uint32, *directoryTable, error) {
	root, err := fs.readRoot()
	if err != nil {
		return noBlock, nil, err
	}

	i := root.find(name)
	if i < 0 {
		return noBlock, nil, checkpoint.Wrap(ErrNotFound, fmt.Errorf("directory %q", name))
	}

	start := root.entries[i].StartBlock
	dir, err := fs.readDirectory(start)
	if err != nil {
		return noBlock, nil, err
	}
	return start, dir, nil
}

// createDirectory reserves a block for an empty directory table and adds it to the root.
func (fs *Fs) createDirectory(name string) error {
	root, err := fs.readRoot()
	if err != nil {
		return err
	}

	if root.find(name) >= 0 {
		return checkpoint.Wrap(ErrAlreadyExists, fmt.Errorf("directory %q", name))
	}
	if len(root.entries) >= fs.geo.maxDirectories {
		return checkpoint.Wrap(ErrRootFull, fmt.Errorf("mkdir %q: %d directories", name, len(root.entries)))
	}

	start, err := fs.reserve()
	if err != nil {
		return err
	}

	if err := fs.writeDirectory(start, &directoryTable{}); err != nil {
		return fs.undoReserve(start, err)
	}

	entry := RootEntry{StartBlock: start}
	putCString(entry.Name[:], name)
	root.entries = append(root.entries, entry)

	if err := fs.writeRoot(root); err != nil {
		return fs.undoReserve(start, err)
	}
	return nil
}

// removeDirectory removes an empty directory from the root, then releases its block.
func (fs *Fs) removeDirectory(name string) error {
	root, err := fs.readRoot()
	if err != nil {
		return err
	}

	i := root.find(name)
	if i < 0 {
		return checkpoint.Wrap(ErrNotFound, fmt.Errorf("directory %q", name))
	}

	start := root.entries[i].StartBlock
	dir, err := fs.readDirectory(start)
	if err != nil {
		return err
	}
	if len(dir.files) > 0 {
		return checkpoint.Wrap(ErrNotEmpty, fmt.Errorf("directory %q has %d files", name, len(dir.files)))
	}

	root.remove(i)
	if err := fs.writeRoot(root); err != nil {
		return err
	}

	return fs.bitmap.release(start)
}

// reserve allocates the next free block.
func (fs *Fs) reserve() (uint32, error) {
	index, err := fs.bitmap.reserve()
	if err != nil {
		if errors.Is(err, ErrDiskFull) {
			fs.log.Printf("volume %v: no free block left", fs.volumeID)
		}
		return noBlock, err
	}
	return index, nil
}

// undoReserve releases a block which was reserved by a call that failed afterwards.
// The original error is returned.
func (fs *Fs) undoReserve(index uint32, cause error) error {
	if err := fs.bitmap.release(index); err != nil {
		fs.log.Printf("volume %v: could not release block %d after failure: %v", fs.volumeID, index, err)
	}
	return cause
}
