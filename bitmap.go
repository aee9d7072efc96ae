package blockfs

import (
	"fmt"

	"github.com/aligator/blockfs/checkpoint"
)

// bitmap manages the free-space bitmap stored in the trailing blocks of the store.
// Block i is tracked by bit i%8 of byte i/8 of the region, bit 0 being the least significant.
// A set bit means the block is allocated.
type bitmap struct {
	store *blockStore
	geo   geometry
}

func newBitmap(store *blockStore, g geometry) *bitmap {
	return &bitmap{store: store, geo: g}
}

// locate returns the bitmap block, the byte inside of it and the bit mask tracking index.
func (b *bitmap) locate(index uint32) (block uint32, byteIndex int, mask byte) {
	bitsPerBlock := uint32(b.geo.blockSize) * 8
	block = b.geo.bitmapStart + index/bitsPerBlock
	byteIndex = int(index%bitsPerBlock) / 8
	mask = 1 << (index % 8)
	return
}

// format writes an initial bitmap: block 0 and the bitmap blocks are allocated,
// as are the padding bits behind the last block.
func (b *bitmap) format() error {
	bitsPerBlock := uint32(b.geo.blockSize) * 8

	for i := uint32(0); i < b.geo.bitmapBlocks; i++ {
		data := make([]byte, b.geo.blockSize)
		first := i * bitsPerBlock
		for bit := uint32(0); bit < bitsPerBlock; bit++ {
			index := first + bit
			if index >= b.geo.totalBlocks || b.geo.isReserved(index) {
				data[bit/8] |= 1 << (bit % 8)
			}
		}

		if err := b.store.writeBlock(b.geo.bitmapStart+i, data); err != nil {
			return err
		}
	}

	return nil
}

// reserve finds the free block with the lowest index, marks it as allocated and persists the bitmap block.
func (b *bitmap) reserve() (uint32, error) {
	bitsPerBlock := uint32(b.geo.blockSize) * 8

	for i := uint32(0); i < b.geo.bitmapBlocks; i++ {
		data, err := b.store.readBlock(b.geo.bitmapStart + i)
		if err != nil {
			return noBlock, err
		}

		for byteIndex, value := range data {
			// Fast path for completely allocated bytes.
			if value == 0xFF {
				continue
			}

			for bit := uint32(0); bit < 8; bit++ {
				index := i*bitsPerBlock + uint32(byteIndex)*8 + bit
				if index >= b.geo.totalBlocks {
					break
				}
				if b.geo.isReserved(index) || value&(1<<bit) != 0 {
					continue
				}

				data[byteIndex] = value | 1<<bit
				if err := b.store.writeBlock(b.geo.bitmapStart+i, data); err != nil {
					return noBlock, err
				}
				return index, nil
			}
		}
	}

	return noBlock, checkpoint.From(ErrDiskFull)
}

// release marks the block as free again.
// Releasing a reserved or an already free block is an error, as it means the tables are inconsistent.
func (b *bitmap) release(index uint32) error {
	if index >= b.geo.totalBlocks {
		return checkpoint.Wrap(ErrOutOfRange, fmt.Errorf("release block %d", index))
	}
	if b.geo.isReserved(index) {
		return checkpoint.Wrap(ErrCorrupt, fmt.Errorf("release of reserved block %d", index))
	}

	block, byteIndex, mask := b.locate(index)
	data, err := b.store.readBlock(block)
	if err != nil {
		return err
	}

	if data[byteIndex]&mask == 0 {
		return checkpoint.Wrap(ErrCorrupt, fmt.Errorf("release of free block %d", index))
	}

	data[byteIndex] &^= mask
	return b.store.writeBlock(block, data)
}

// isAllocated reports the state of a single block.
func (b *bitmap) isAllocated(index uint32) (bool, error) {
	if index >= b.geo.totalBlocks {
		return false, checkpoint.Wrap(ErrOutOfRange, fmt.Errorf("block %d", index))
	}

	block, byteIndex, mask := b.locate(index)
	data, err := b.store.readBlock(block)
	if err != nil {
		return false, err
	}
	return data[byteIndex]&mask != 0, nil
}

// allocated returns the state of all blocks, reading each bitmap block once.
func (b *bitmap) allocated() ([]bool, error) {
	result := make([]bool, b.geo.totalBlocks)
	bitsPerBlock := uint32(b.geo.blockSize) * 8

	for i := uint32(0); i < b.geo.bitmapBlocks; i++ {
		data, err := b.store.readBlock(b.geo.bitmapStart + i)
		if err != nil {
			return nil, err
		}

		for bit := uint32(0); bit < bitsPerBlock; bit++ {
			index := i*bitsPerBlock + bit
			if index >= b.geo.totalBlocks {
				break
			}
			result[index] = data[bit/8]&(1<<(bit%8)) != 0
		}
	}

	return result, nil
}
