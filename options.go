package blockfs

import (
	"fmt"
	"io"
	"log"
	"time"
)

const (
	// DefaultBlockSize is the block size used if Options.BlockSize is 0.
	DefaultBlockSize = 512
	// DefaultDiskSize is the backing store size used if Options.DiskSize is 0 (5 MiB).
	DefaultDiskSize = 5 * 1024 * 1024

	minBlockSize = 128
	maxBlockSize = 64 * 1024
)

// Options configure Format and New.
// When opening an existing store, BlockSize and DiskSize are taken from its header
// and the values given here are ignored.
type Options struct {
	BlockSize int
	DiskSize  int64

	// Clock returns the time stamped on written files. Defaults to time.Now.
	Clock func() time.Time
	// Logger receives notable events such as a full disk. Defaults to discarding everything.
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.DiskSize == 0 {
		o.DiskSize = DefaultDiskSize
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	return o
}

// geometry contains all values derived from the block and disk size.
// It is computed once per opened store.
type geometry struct {
	blockSize    int
	totalBlocks  uint32
	bitmapStart  uint32
	bitmapBlocks uint32

	maxDirectories int
	maxFiles       int
	dataPerBlock   int
}

func newGeometry(blockSize int, diskSize int64) (geometry, error) {
	// The block size has to be a power of two, so that a bitmap byte never spans two blocks
	// and the header fields fit.
	if blockSize < minBlockSize || blockSize > maxBlockSize || blockSize&(blockSize-1) != 0 {
		return geometry{}, fmt.Errorf("invalid block size %d", blockSize)
	}

	if diskSize <= 0 || diskSize%int64(blockSize) != 0 {
		return geometry{}, fmt.Errorf("disk size %d is no multiple of the block size %d", diskSize, blockSize)
	}

	total := diskSize / int64(blockSize)
	if total > int64(^uint32(0)) {
		return geometry{}, fmt.Errorf("disk size %d needs too many blocks", diskSize)
	}

	bitmapBytes := (total + 7) / 8
	bitmapBlocks := (bitmapBytes + int64(blockSize) - 1) / int64(blockSize)

	// Block 0, the bitmap and at least one directory block.
	if total < bitmapBlocks+2 {
		return geometry{}, fmt.Errorf("disk size %d is too small", diskSize)
	}

	g := geometry{
		blockSize:    blockSize,
		totalBlocks:  uint32(total),
		bitmapStart:  uint32(total - bitmapBlocks),
		bitmapBlocks: uint32(bitmapBlocks),

		maxDirectories: (blockSize - rootHeaderSize) / rootEntrySize,
		maxFiles:       (blockSize - directoryHeaderSize) / fileRecordSize,
		dataPerBlock:   blockSize - dataHeaderSize,
	}

	if g.maxDirectories < 1 || g.maxFiles < 1 {
		return geometry{}, fmt.Errorf("block size %d cannot hold a single record", blockSize)
	}

	return g, nil
}

// isReserved reports if the block belongs to the root block or the bitmap.
func (g geometry) isReserved(index uint32) bool {
	return index == rootBlock || index >= g.bitmapStart
}

// blocksFor returns the number of chain blocks needed to hold size bytes.
// A file always owns at least one block.
func (g geometry) blocksFor(size int64) int {
	if size <= 0 {
		return 1
	}
	return int((size + int64(g.dataPerBlock) - 1) / int64(g.dataPerBlock))
}
