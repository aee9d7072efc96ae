package blockfs

import (
	"fmt"

	"github.com/aligator/blockfs/checkpoint"
)

func (fs *Fs) readDirectory(start uint32) (*directoryTable, error) {
	if fs.geo.isReserved(start) {
		return nil, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("directory in reserved block %d", start))
	}

	block, err := fs.store.readBlock(start)
	if err != nil {
		return nil, err
	}

	dir, err := decodeDirectory(block, fs.geo.maxFiles)
	return dir, checkpoint.Wrap(err, fmt.Errorf("%w: directory block %d", ErrCorrupt, start))
}

func (fs *Fs) writeDirectory(start uint32, dir *directoryTable) error {
	if len(dir.files) > fs.geo.maxFiles {
		return checkpoint.From(ErrDirectoryFull)
	}
	return fs.store.writeBlock(start, encodeDirectory(fs.geo.blockSize, dir))
}

// findFile returns the index of the file record matching name and extension.
func (fs *Fs) findFile(dir *directoryTable, p fsPath) (int, error) {
	i := dir.find(p.name, p.extension)
	if i < 0 {
		return -1, checkpoint.Wrap(ErrNotFound, fmt.Errorf("file %q", p.raw))
	}
	return i, nil
}

// createFile reserves the first data block and appends an empty record to the directory.
func (fs *Fs) createFile(p fsPath) error {
	start, dir, err := fs.findDirectory(p.directory)
	if err != nil {
		return err
	}

	if dir.find(p.name, p.extension) >= 0 {
		return checkpoint.Wrap(ErrAlreadyExists, fmt.Errorf("file %q", p.raw))
	}
	if len(dir.files) >= fs.geo.maxFiles {
		return checkpoint.Wrap(ErrDirectoryFull, fmt.Errorf("create %q: %d files", p.raw, len(dir.files)))
	}

	first, err := fs.reserve()
	if err != nil {
		return err
	}

	// A fresh block has no successor, whatever was stored there before.
	if err := fs.store.zeroBlock(first); err != nil {
		return fs.undoReserve(first, err)
	}

	record := FileRecord{StartBlock: first}
	putCString(record.Name[:], p.name)
	putCString(record.Extension[:], p.extension)
	fs.touch(&record)
	dir.files = append(dir.files, record)

	if err := fs.writeDirectory(start, dir); err != nil {
		return fs.undoReserve(first, err)
	}
	return nil
}

// removeFile removes the record from its directory, then releases the whole chain.
func (fs *Fs) removeFile(p fsPath) error {
	start, dir, err := fs.findDirectory(p.directory)
	if err != nil {
		return err
	}

	i, err := fs.findFile(dir, p)
	if err != nil {
		return err
	}

	blocks, err := fs.chain(dir.files[i].StartBlock)
	if err != nil {
		return err
	}

	dir.remove(i)
	if err := fs.writeDirectory(start, dir); err != nil {
		return err
	}

	return fs.releaseBlocks(blocks)
}
