package blockfs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// pattern returns n bytes which differ between neighbouring blocks.
func pattern(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = seed + byte(i%251)
	}
	return data
}

func testingFile(t *testing.T, opts Options) (*Fs, string) {
	t.Helper()
	fs := testingFormat(t, opts)
	mustMakeDirectory(t, fs, "/docs")
	mustCreateFile(t, fs, "/docs/data.bin")
	return fs, "/docs/data.bin"
}

func TestFs_WriteRead(t *testing.T) {
	fs, name := testingFile(t, Options{})
	perBlock := fs.BlockSize() - dataHeaderSize
	data := pattern(3000, 7)

	n, err := fs.Write(name, 0, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	tests := []struct {
		name   string
		offset int64
		length int
		want   []byte
	}{
		{name: "everything", offset: 0, length: 3000, want: data},
		{name: "first block", offset: 0, length: perBlock, want: data[:perBlock]},
		{name: "across a block boundary", offset: int64(perBlock) - 10, length: 20, want: data[perBlock-10 : perBlock+10]},
		{name: "exactly the second block", offset: int64(perBlock), length: perBlock, want: data[perBlock : 2*perBlock]},
		{name: "over the end", offset: 2990, length: 100, want: data[2990:]},
		{name: "at the end", offset: 3000, length: 10, want: []byte{}},
		{name: "empty buffer", offset: 100, length: 0, want: []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.length)
			n, err := fs.Read(name, tt.offset, buf)
			require.NoError(t, err)
			require.Equal(t, tt.want, buf[:n])
		})
	}

	attributes, err := fs.GetAttributes(name)
	require.NoError(t, err)
	require.Equal(t, int64(3000), attributes.Size)

	blocks, err := fs.chain(attributes.StartBlock)
	require.NoError(t, err)
	require.Len(t, blocks, fs.geo.blocksFor(3000))

	testingCheck(t, fs)
}

func TestFs_WriteAppend(t *testing.T) {
	fs, name := testingFile(t, Options{})
	first := pattern(700, 1)
	second := pattern(900, 100)

	_, err := fs.Write(name, 0, first)
	require.NoError(t, err)
	_, err = fs.Write(name, int64(len(first)), second)
	require.NoError(t, err)

	buf := make([]byte, 2000)
	n, err := fs.Read(name, 0, buf)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, first...), second...), buf[:n])

	testingCheck(t, fs)
}

func TestFs_WriteOverwrite(t *testing.T) {
	fs, name := testingFile(t, Options{})
	data := pattern(2000, 3)

	_, err := fs.Write(name, 0, data)
	require.NoError(t, err)

	// Overwrite a range spanning three blocks without changing the size.
	patch := bytes.Repeat([]byte{0xEE}, 700)
	_, err = fs.Write(name, 400, patch)
	require.NoError(t, err)

	want := append([]byte{}, data...)
	copy(want[400:], patch)

	buf := make([]byte, 2000)
	n, err := fs.Read(name, 0, buf)
	require.NoError(t, err)
	require.Equal(t, want, buf[:n])

	attributes, err := fs.GetAttributes(name)
	require.NoError(t, err)
	require.Equal(t, int64(2000), attributes.Size)

	// Overwriting the tail also grows the file.
	_, err = fs.Write(name, 1990, patch)
	require.NoError(t, err)

	attributes, err = fs.GetAttributes(name)
	require.NoError(t, err)
	require.Equal(t, int64(1990+700), attributes.Size)

	testingCheck(t, fs)
}

func TestFs_InvalidOffset(t *testing.T) {
	fs, name := testingFile(t, Options{})

	_, err := fs.Write(name, 0, []byte("hello"))
	require.NoError(t, err)

	_, err = fs.Write(name, 6, []byte("x"))
	require.ErrorIs(t, err, ErrInvalidOffset)

	_, err = fs.Read(name, 6, make([]byte, 1))
	require.ErrorIs(t, err, ErrInvalidOffset)

	_, err = fs.Read(name, -1, make([]byte, 1))
	require.ErrorIs(t, err, ErrInvalidOffset)

	// Writing directly at the end is allowed.
	_, err = fs.Write(name, 5, []byte(" world"))
	require.NoError(t, err)

	buf := make([]byte, 20)
	n, err := fs.Read(name, 0, buf)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(buf[:n]))
}

func TestFs_WriteEmpty(t *testing.T) {
	fs, name := testingFile(t, Options{})

	n, err := fs.Write(name, 0, nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	attributes, err := fs.GetAttributes(name)
	require.NoError(t, err)
	require.Equal(t, int64(0), attributes.Size)

	// The offset is validated even if there is nothing to write.
	_, err = fs.Write(name, 100, nil)
	require.ErrorIs(t, err, ErrInvalidOffset)
	_, err = fs.Write(name, -1, []byte{})
	require.ErrorIs(t, err, ErrInvalidOffset)
}

func TestFs_Truncate(t *testing.T) {
	fs, name := testingFile(t, Options{DiskSize: smallDisk})
	perBlock := fs.BlockSize() - dataHeaderSize
	data := pattern(5*perBlock, 9)

	_, err := fs.Write(name, 0, data)
	require.NoError(t, err)

	usage, err := fs.Usage()
	require.NoError(t, err)
	require.Equal(t, uint32(6), usage.UsedBlocks)

	// Shrink to one and a half blocks.
	size := int64(perBlock + perBlock/2)
	require.NoError(t, fs.Truncate(name, size))

	usage, err = fs.Usage()
	require.NoError(t, err)
	require.Equal(t, uint32(3), usage.UsedBlocks)

	buf := make([]byte, len(data))
	n, err := fs.Read(name, 0, buf)
	require.NoError(t, err)
	require.Equal(t, data[:size], buf[:n])
	testingCheck(t, fs)

	// Grow again, the new bytes are zero.
	require.NoError(t, fs.Truncate(name, 3*int64(perBlock)))

	n, err = fs.Read(name, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 3*perBlock, n)
	require.Equal(t, data[:size], buf[:size])
	require.Equal(t, make([]byte, 3*int64(perBlock)-size), buf[size:n])
	testingCheck(t, fs)

	// The first block is always kept.
	require.NoError(t, fs.Truncate(name, 0))
	usage, err = fs.Usage()
	require.NoError(t, err)
	require.Equal(t, uint32(2), usage.UsedBlocks)

	require.ErrorIs(t, fs.Truncate(name, -1), ErrInvalidOffset)
	require.ErrorIs(t, fs.Truncate("/docs", 0), ErrIsDirectory)
	require.ErrorIs(t, fs.Truncate("/docs/missing.bin", 0), ErrNotFound)
	testingCheck(t, fs)
}

// flakyDevice fails the failAt-th call of WriteAt, counted from the last arm.
type flakyDevice struct {
	Device
	writes int
	failAt int
}

func (d *flakyDevice) arm(failAt int) {
	d.writes = 0
	d.failAt = failAt
}

func (d *flakyDevice) WriteAt(p []byte, off int64) (int, error) {
	d.writes++
	if d.writes == d.failAt {
		return 0, errDevice
	}
	return d.Device.WriteAt(p, off)
}

func TestFs_Truncate_WriteFailure(t *testing.T) {
	data := pattern(3000, 3)

	tests := []struct {
		name      string
		failAt    int
		wantSize  int64
		wantCheck error
	}{
		// Truncate writes the directory, then the new last block of the chain, then the bitmap.
		{name: "directory write fails", failAt: 1, wantSize: 3000},
		{name: "cutting the chain fails", failAt: 2, wantSize: 10},
		// The cut blocks are unreferenced but still allocated.
		{name: "releasing fails", failAt: 3, wantSize: 10, wantCheck: ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image, err := afero.NewMemMapFs().Create("flaky.img")
			require.NoError(t, err)
			defer image.Close()

			dev := &flakyDevice{Device: image}
			fs, err := Format(dev, Options{DiskSize: smallDisk, Clock: testClock})
			require.NoError(t, err)

			mustMakeDirectory(t, fs, "/d")
			mustCreateFile(t, fs, "/d/f.bin")
			_, err = fs.Write("/d/f.bin", 0, data)
			require.NoError(t, err)

			dev.arm(tt.failAt)
			require.ErrorIs(t, fs.Truncate("/d/f.bin", 10), errDevice)
			dev.arm(0)

			attributes, err := fs.GetAttributes("/d/f.bin")
			require.NoError(t, err)
			require.Equal(t, tt.wantSize, attributes.Size)

			buf := make([]byte, len(data))
			n, err := fs.Read("/d/f.bin", 0, buf)
			require.NoError(t, err)
			require.Equal(t, data[:tt.wantSize], buf[:n])

			if tt.wantCheck != nil {
				require.ErrorIs(t, fs.Check(), tt.wantCheck)
				return
			}
			testingCheck(t, fs)

			// Retrying completes the truncation.
			require.NoError(t, fs.Truncate("/d/f.bin", 10))
			usage, err := fs.Usage()
			require.NoError(t, err)
			require.Equal(t, uint32(2), usage.UsedBlocks)
			testingCheck(t, fs)
		})
	}
}

func TestFs_TruncateReusedBlock(t *testing.T) {
	fs, name := testingFile(t, Options{DiskSize: smallDisk})

	// Leave old content in a released block.
	mustCreateFile(t, fs, "/docs/old.bin")
	_, err := fs.Write("/docs/old.bin", 0, bytes.Repeat([]byte{0xFF}, 1500))
	require.NoError(t, err)
	require.NoError(t, fs.RemoveFile("/docs/old.bin"))

	require.NoError(t, fs.Truncate(name, 1200))

	buf := make([]byte, 1200)
	n, err := fs.Read(name, 0, buf)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 1200), buf[:n])
	testingCheck(t, fs)
}

func TestFs_Chain_Corrupt(t *testing.T) {
	fs, name := testingFile(t, Options{DiskSize: smallDisk})
	perBlock := fs.BlockSize() - dataHeaderSize

	_, err := fs.Write(name, 0, pattern(3*perBlock, 0))
	require.NoError(t, err)

	attributes, err := fs.GetAttributes(name)
	require.NoError(t, err)
	blocks, err := fs.chain(attributes.StartBlock)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	// Let the last block point back to the first one.
	last, err := fs.store.readBlock(blocks[2])
	require.NoError(t, err)
	setNext(last, blocks[0])
	require.NoError(t, fs.store.writeBlock(blocks[2], last))

	_, err = fs.chain(attributes.StartBlock)
	require.ErrorIs(t, err, ErrCorrupt)

	err = fs.Check()
	require.ErrorIs(t, err, ErrCorrupt)

	// A link into the bitmap is detected while reading.
	setNext(last, fs.geo.bitmapStart)
	require.NoError(t, fs.store.writeBlock(blocks[2], last))

	_, err = fs.chain(attributes.StartBlock)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFs_Check(t *testing.T) {
	tests := []struct {
		name   string
		damage func(t *testing.T, fs *Fs)
	}{
		{
			name: "allocated block without owner",
			damage: func(t *testing.T, fs *Fs) {
				_, err := fs.bitmap.reserve()
				require.NoError(t, err)
			},
		},
		{
			name: "used block marked as free",
			damage: func(t *testing.T, fs *Fs) {
				attributes, err := fs.GetAttributes("/docs/data.bin")
				require.NoError(t, err)
				require.NoError(t, fs.bitmap.release(attributes.StartBlock))
			},
		},
		{
			name: "size larger than the chain",
			damage: func(t *testing.T, fs *Fs) {
				start, dir, err := fs.findDirectory("docs")
				require.NoError(t, err)
				dir.files[0].Size = 10 * uint64(fs.geo.dataPerBlock)
				require.NoError(t, fs.writeDirectory(start, dir))
			},
		},
		{
			name: "two files sharing a block",
			damage: func(t *testing.T, fs *Fs) {
				mustCreateFile(t, fs, "/docs/other.bin")
				start, dir, err := fs.findDirectory("docs")
				require.NoError(t, err)
				dir.files[1].StartBlock = dir.files[0].StartBlock
				require.NoError(t, fs.writeDirectory(start, dir))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, _ := testingFile(t, Options{DiskSize: smallDisk})
			testingCheck(t, fs)

			tt.damage(t, fs)
			err := fs.Check()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrCorrupt))
		})
	}
}
