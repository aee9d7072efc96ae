package blockfs

import (
	"errors"
	"fmt"
	"io"

	"github.com/aligator/blockfs/checkpoint"
)

// These errors may occur while accessing the backing store.
var (
	ErrReadBlock  = errors.New("could not read block")
	ErrWriteBlock = errors.New("could not write block")
)

// Device is the backing store of a filesystem, usually a file of the host.
// Both *os.File and afero.File satisfy it.
type Device interface {
	io.ReaderAt
	io.WriterAt
}

// blockStore reads and writes whole blocks of a Device.
// There is no caching: every call directly results in one positioned I/O operation.
type blockStore struct {
	dev         Device
	blockSize   int
	totalBlocks uint32
}

func newBlockStore(dev Device, g geometry) *blockStore {
	return &blockStore{
		dev:         dev,
		blockSize:   g.blockSize,
		totalBlocks: g.totalBlocks,
	}
}

func (s *blockStore) offset(index uint32) int64 {
	return int64(index) * int64(s.blockSize)
}

func (s *blockStore) checkRange(index uint32) error {
	if index >= s.totalBlocks {
		return checkpoint.Wrap(ErrOutOfRange, fmt.Errorf("block %d, total %d", index, s.totalBlocks))
	}
	return nil
}

// readBlock returns a fresh buffer containing the block.
func (s *blockStore) readBlock(index uint32) ([]byte, error) {
	if err := s.checkRange(index); err != nil {
		return nil, err
	}

	block := make([]byte, s.blockSize)
	n, err := s.dev.ReadAt(block, s.offset(index))

	// ReaderAt may return io.EOF together with a complete block at the end of the device.
	if err == io.EOF {
		if n == len(block) {
			err = nil
		} else {
			err = io.ErrUnexpectedEOF
		}
	}
	if err != nil {
		return nil, checkpoint.Wrap(err, fmt.Errorf("%w %d", ErrReadBlock, index))
	}

	return block, nil
}

// writeBlock overwrites exactly one block.
func (s *blockStore) writeBlock(index uint32, block []byte) error {
	if err := s.checkRange(index); err != nil {
		return err
	}

	if len(block) != s.blockSize {
		return checkpoint.From(fmt.Errorf("%w %d: got %d bytes, want %d", ErrWriteBlock, index, len(block), s.blockSize))
	}

	_, err := s.dev.WriteAt(block, s.offset(index))
	return checkpoint.Wrap(err, fmt.Errorf("%w %d", ErrWriteBlock, index))
}

// zeroBlock writes a block containing only zeros.
func (s *blockStore) zeroBlock(index uint32) error {
	return s.writeBlock(index, make([]byte, s.blockSize))
}
