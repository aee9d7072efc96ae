package blockfs

import (
	"fmt"

	"github.com/aligator/blockfs/checkpoint"
)

// next validates and returns the successor stored in a data block.
func (fs *Fs) next(index uint32, block []byte) (uint32, error) {
	next := nextOf(block)
	if next != noBlock && (next >= fs.geo.totalBlocks || fs.geo.isReserved(next)) {
		return noBlock, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("block %d links to invalid block %d", index, next))
	}
	return next, nil
}

// chain returns all blocks of the chain beginning at start, in order.
func (fs *Fs) chain(start uint32) ([]uint32, error) {
	if start == noBlock || start >= fs.geo.totalBlocks || fs.geo.isReserved(start) {
		return nil, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("chain starts at invalid block %d", start))
	}

	var blocks []uint32
	for current := start; current != noBlock; {
		// A chain can never be longer than the disk. Anything else is a loop.
		if uint32(len(blocks)) >= fs.geo.totalBlocks {
			return nil, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("chain at block %d contains a loop", start))
		}
		blocks = append(blocks, current)

		block, err := fs.store.readBlock(current)
		if err != nil {
			return nil, err
		}

		current, err = fs.next(current, block)
		if err != nil {
			return nil, err
		}
	}

	return blocks, nil
}

// readChain copies the content of the file starting at offset into buf.
// It stops at the end of the file and returns the number of copied bytes.
func (fs *Fs) readChain(record FileRecord, offset int64, buf []byte) (int, error) {
	size := int64(record.Size)
	if offset < 0 || offset > size {
		return 0, checkpoint.Wrap(ErrInvalidOffset, fmt.Errorf("read at %d, size %d", offset, size))
	}

	n := int64(len(buf))
	if size-offset < n {
		n = size - offset
	}
	if n == 0 {
		return 0, nil
	}

	perBlock := int64(fs.geo.dataPerBlock)
	current := record.StartBlock

	// Skip the blocks before offset.
	for skip := offset / perBlock; skip > 0; skip-- {
		block, err := fs.store.readBlock(current)
		if err != nil {
			return 0, err
		}
		if current, err = fs.next(current, block); err != nil {
			return 0, err
		}
		if current == noBlock {
			return 0, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("chain at block %d is shorter than size %d", record.StartBlock, size))
		}
	}

	var read int64
	inner := offset % perBlock
	for read < n {
		if current == noBlock {
			return int(read), checkpoint.Wrap(ErrCorrupt, fmt.Errorf("chain at block %d is shorter than size %d", record.StartBlock, size))
		}

		block, err := fs.store.readBlock(current)
		if err != nil {
			return int(read), err
		}

		read += int64(copy(buf[read:n], block[dataHeaderSize+inner:]))
		inner = 0

		if current, err = fs.next(current, block); err != nil {
			return int(read), err
		}
	}

	return int(read), nil
}

// writeChain writes data into the chain of the record starting at offset and updates the size of the record.
// The record is not persisted. The chain is extended before any data is written.
func (fs *Fs) writeChain(record *FileRecord, offset int64, data []byte) (int, error) {
	size := int64(record.Size)
	if offset < 0 || offset > size {
		return 0, checkpoint.Wrap(ErrInvalidOffset, fmt.Errorf("write at %d, size %d", offset, size))
	}
	if len(data) == 0 {
		return 0, nil
	}

	end := offset + int64(len(data))
	blocks, err := fs.chain(record.StartBlock)
	if err != nil {
		return 0, err
	}

	if need := fs.geo.blocksFor(end); need > len(blocks) {
		if blocks, err = fs.extendChain(blocks, need); err != nil {
			return 0, err
		}
	}

	perBlock := int64(fs.geo.dataPerBlock)
	written := 0
	for written < len(data) {
		pos := offset + int64(written)
		index := blocks[pos/perBlock]

		// Read-modify-write keeps the successor and the bytes around the written range.
		block, err := fs.store.readBlock(index)
		if err != nil {
			return written, err
		}

		n := copy(block[dataHeaderSize+pos%perBlock:], data[written:])
		if err := fs.store.writeBlock(index, block); err != nil {
			return written, err
		}
		written += n
	}

	if end > size {
		record.Size = uint64(end)
	}
	return written, nil
}

// extendChain appends new blocks until the chain has need blocks.
// Each new block is zeroed before it gets linked to the previous last block.
// On failure the blocks linked so far stay part of the chain.
func (fs *Fs) extendChain(blocks []uint32, need int) ([]uint32, error) {
	for len(blocks) < need {
		index, err := fs.reserve()
		if err != nil {
			return blocks, err
		}

		if err := fs.store.zeroBlock(index); err != nil {
			return blocks, fs.undoReserve(index, err)
		}

		last := blocks[len(blocks)-1]
		block, err := fs.store.readBlock(last)
		if err != nil {
			return blocks, fs.undoReserve(index, err)
		}

		setNext(block, index)
		if err := fs.store.writeBlock(last, block); err != nil {
			return blocks, fs.undoReserve(index, err)
		}

		blocks = append(blocks, index)
	}

	return blocks, nil
}

// cutChain shortens the chain to keep blocks and returns the blocks which are no longer linked.
// They are still marked as allocated.
func (fs *Fs) cutChain(start uint32, keep int) ([]uint32, error) {
	blocks, err := fs.chain(start)
	if err != nil {
		return nil, err
	}
	if keep < 1 {
		keep = 1
	}
	if len(blocks) <= keep {
		return nil, nil
	}

	last := blocks[keep-1]
	block, err := fs.store.readBlock(last)
	if err != nil {
		return nil, err
	}

	setNext(block, noBlock)
	if err := fs.store.writeBlock(last, block); err != nil {
		return nil, err
	}

	return blocks[keep:], nil
}

// zeroFill grows the file from size to newSize by writing zeros.
func (fs *Fs) zeroFill(record *FileRecord, size, newSize int64) error {
	zeros := make([]byte, 64*fs.geo.dataPerBlock)
	for size < newSize {
		chunk := zeros
		if remaining := newSize - size; remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}

		n, err := fs.writeChain(record, size, chunk)
		if err != nil {
			return err
		}
		size += int64(n)
	}
	return nil
}

// releaseBlocks marks all blocks as free. It stops at the first failure.
func (fs *Fs) releaseBlocks(blocks []uint32) error {
	for _, index := range blocks {
		if err := fs.bitmap.release(index); err != nil {
			return err
		}
	}
	return nil
}
