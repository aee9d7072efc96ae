package blockfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aligator/blockfs/checkpoint"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// These errors may occur while opening or formatting a filesystem.
var (
	ErrInvalidHeader = errors.New("invalid filesystem header")
	ErrFormat        = errors.New("could not format the filesystem")
)

// Fs is a two-level filesystem (root -> directories -> 8.3 files) stored in fixed-size blocks of a Device.
// Its methods are the filesystem calls a mount layer dispatches to; all of them take absolute paths.
// The calls are serialized, a Device must not be shared between several Fs.
type Fs struct {
	lock sync.Mutex

	dev    Device
	closer io.Closer
	closed bool

	geo      geometry
	store    *blockStore
	bitmap   *bitmap
	volumeID uuid.UUID

	clock func() time.Time
	log   *log.Logger
}

// Usage describes how many blocks of the store are in use.
type Usage struct {
	BlockSize      int
	TotalBlocks    uint32
	ReservedBlocks uint32
	UsedBlocks     uint32
	FreeBlocks     uint32
}

func newFs(dev Device, g geometry, opts Options) *Fs {
	store := newBlockStore(dev, g)
	return &Fs{
		dev:    dev,
		geo:    g,
		store:  store,
		bitmap: newBitmap(store, g),
		clock:  opts.Clock,
		log:    opts.Logger,
	}
}

// Format initializes an empty filesystem on the device, overwriting the root block and the bitmap.
// The device must be able to hold Options.DiskSize bytes.
func Format(dev Device, opts Options) (*Fs, error) {
	opts = opts.withDefaults()
	g, err := newGeometry(opts.BlockSize, opts.DiskSize)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrFormat)
	}

	fs := newFs(dev, g, opts)
	fs.volumeID = uuid.New()

	// The bitmap is located at the end, so writing it first also grows a new image to its full size.
	if err := fs.bitmap.format(); err != nil {
		return nil, checkpoint.Wrap(err, ErrFormat)
	}

	root := &rootTable{
		header: RootHeader{
			Magic:        magic,
			Version:      formatVersion,
			BlockSize:    uint32(g.blockSize),
			TotalBlocks:  g.totalBlocks,
			BitmapStart:  g.bitmapStart,
			BitmapBlocks: g.bitmapBlocks,
			VolumeID:     [16]byte(fs.volumeID),
		},
	}
	if err := fs.writeRoot(root); err != nil {
		return nil, checkpoint.Wrap(err, ErrFormat)
	}

	fs.log.Printf("formatted volume %v: %d blocks of %d bytes", fs.volumeID, g.totalBlocks, g.blockSize)
	return fs, nil
}

// New opens an existing filesystem from the device.
// The geometry is read from the header, Options.BlockSize and Options.DiskSize are ignored.
func New(dev Device, opts Options) (*Fs, error) {
	opts = opts.withDefaults()

	// The header is always at the start of block 0, whatever the block size is.
	raw := make([]byte, rootHeaderSize)
	n, err := dev.ReadAt(raw, 0)
	if err != nil && !(err == io.EOF && n == len(raw)) {
		return nil, checkpoint.Wrap(err, ErrInvalidHeader)
	}

	var header RootHeader
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &header); err != nil {
		return nil, checkpoint.Wrap(err, ErrInvalidHeader)
	}

	if header.Magic != magic {
		return nil, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, header.Magic[:]))
	}
	if header.Version != formatVersion {
		return nil, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("%w: unsupported version %d", ErrInvalidHeader, header.Version))
	}

	g, err := newGeometry(int(header.BlockSize), int64(header.TotalBlocks)*int64(header.BlockSize))
	if err != nil {
		return nil, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("%w: %v", ErrInvalidHeader, err))
	}
	if g.bitmapStart != header.BitmapStart || g.bitmapBlocks != header.BitmapBlocks {
		return nil, checkpoint.Wrap(ErrCorrupt, fmt.Errorf("%w: bitmap at %d+%d, expected %d+%d",
			ErrInvalidHeader, header.BitmapStart, header.BitmapBlocks, g.bitmapStart, g.bitmapBlocks))
	}

	fs := newFs(dev, g, opts)
	fs.volumeID = uuid.UUID(header.VolumeID)

	// Validates the checksum and the directory count.
	if _, err := fs.readRoot(); err != nil {
		return nil, checkpoint.Wrap(err, ErrInvalidHeader)
	}

	return fs, nil
}

// CreateImage creates (or overwrites) the image file name on afs and formats it.
// Closing the returned Fs closes the image file.
func CreateImage(afs afero.Fs, name string, opts Options) (*Fs, error) {
	file, err := afs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	fs, err := Format(file, opts)
	if err != nil {
		file.Close()
		return nil, err
	}

	fs.closer = file
	return fs, nil
}

// OpenImage opens the formatted image file name on afs.
// Closing the returned Fs closes the image file.
func OpenImage(afs afero.Fs, name string, opts Options) (*Fs, error) {
	file, err := afs.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	fs, err := New(file, opts)
	if err != nil {
		file.Close()
		return nil, err
	}

	fs.closer = file
	return fs, nil
}

// Close releases the image file if the Fs was opened by CreateImage or OpenImage.
// All calls after Close fail with ErrClosed.
func (fs *Fs) Close() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.closed {
		return nil
	}
	fs.closed = true

	if fs.closer != nil {
		return checkpoint.From(fs.closer.Close())
	}
	return nil
}

// VolumeID returns the id generated when the filesystem was formatted.
func (fs *Fs) VolumeID() uuid.UUID {
	return fs.volumeID
}

// BlockSize returns the size of one block in bytes.
func (fs *Fs) BlockSize() int {
	return fs.geo.blockSize
}

// MaxDirectories returns how many directories fit into the root.
func (fs *Fs) MaxDirectories() int {
	return fs.geo.maxDirectories
}

// MaxFiles returns how many files fit into one directory.
func (fs *Fs) MaxFiles() int {
	return fs.geo.maxFiles
}

// begin locks the filesystem for one call. The returned function unlocks it again.
func (fs *Fs) begin() (func(), error) {
	fs.lock.Lock()
	if fs.closed {
		fs.lock.Unlock()
		return nil, checkpoint.From(ErrClosed)
	}
	return fs.lock.Unlock, nil
}

// GetAttributes returns the attributes of the root, a directory or a file.
func (fs *Fs) GetAttributes(name string) (Attributes, error) {
	done, err := fs.begin()
	if err != nil {
		return Attributes{}, err
	}
	defer done()

	p, err := parseLookup(name)
	if err != nil {
		return Attributes{}, err
	}

	return fs.lookup(p)
}

// lookup resolves a validated path to its attributes.
func (fs *Fs) lookup(p fsPath) (Attributes, error) {
	if p.isRoot() {
		return Attributes{Kind: KindDirectory, Name: "/", StartBlock: rootBlock}, nil
	}

	start, dir, err := fs.findDirectory(p.directory)
	if err != nil {
		return Attributes{}, err
	}

	if p.isDirectory() {
		return Attributes{Kind: KindDirectory, Name: p.directory, StartBlock: start}, nil
	}

	i, err := fs.findFile(dir, p)
	if err != nil {
		return Attributes{}, err
	}
	return fs.fileAttributes(dir.files[i]), nil
}

func (fs *Fs) fileAttributes(record FileRecord) Attributes {
	return Attributes{
		Kind:       KindRegularFile,
		Name:       record.fullName(),
		Size:       int64(record.Size),
		ModTime:    ParseDateTime(record.WriteDate, record.WriteTime),
		StartBlock: record.StartBlock,
	}
}

// ListAttributes returns the attributes of all entries of the root or of a directory, in table order.
func (fs *Fs) ListAttributes(name string) ([]Attributes, error) {
	done, err := fs.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	p, err := parseLookup(name)
	if err != nil {
		return nil, err
	}

	if p.isRoot() {
		root, err := fs.readRoot()
		if err != nil {
			return nil, err
		}

		result := make([]Attributes, len(root.entries))
		for i, entry := range root.entries {
			result[i] = Attributes{Kind: KindDirectory, Name: entry.name(), StartBlock: entry.StartBlock}
		}
		return result, nil
	}

	_, dir, err := fs.findDirectory(p.directory)
	if err != nil {
		return nil, err
	}

	if !p.isDirectory() {
		if _, err := fs.findFile(dir, p); err != nil {
			return nil, err
		}
		return nil, checkpoint.Wrap(ErrNotDirectory, fmt.Errorf("list %q", name))
	}

	result := make([]Attributes, len(dir.files))
	for i, record := range dir.files {
		result[i] = fs.fileAttributes(record)
	}
	return result, nil
}

// ListDirectory returns the names of all entries of the root or of a directory, always starting with "." and "..".
func (fs *Fs) ListDirectory(name string) ([]string, error) {
	entries, err := fs.ListAttributes(name)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries)+2)
	names = append(names, ".", "..")
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names, nil
}

// MakeDirectory creates a directory directly below the root.
func (fs *Fs) MakeDirectory(name string) error {
	done, err := fs.begin()
	if err != nil {
		return err
	}
	defer done()

	p, err := splitPath(name)
	if err != nil {
		return err
	}

	if p.isRoot() {
		return checkpoint.Wrap(ErrAlreadyExists, fmt.Errorf("mkdir %q", name))
	}
	// Directories may only be created directly below the root.
	if p.depth() > 1 {
		return checkpoint.Wrap(ErrPermissionDenied, fmt.Errorf("mkdir %q: nested directory", name))
	}
	if err := p.validate(); err != nil {
		return err
	}

	return fs.createDirectory(p.directory)
}

// RemoveDirectory removes an empty directory and releases its block.
func (fs *Fs) RemoveDirectory(name string) error {
	done, err := fs.begin()
	if err != nil {
		return err
	}
	defer done()

	p, err := parseLookup(name)
	if err != nil {
		return err
	}

	if p.isRoot() {
		return checkpoint.Wrap(ErrPermissionDenied, fmt.Errorf("rmdir %q", name))
	}
	if !p.isDirectory() {
		return checkpoint.Wrap(ErrNotDirectory, fmt.Errorf("rmdir %q", name))
	}

	return fs.removeDirectory(p.directory)
}

// CreateFile creates an empty file inside of an existing directory.
func (fs *Fs) CreateFile(name string) error {
	done, err := fs.begin()
	if err != nil {
		return err
	}
	defer done()

	p, err := splitPath(name)
	if err != nil {
		return err
	}

	// Files can neither live in the root nor below a second directory level.
	if p.depth() != 2 {
		return checkpoint.Wrap(ErrPermissionDenied, fmt.Errorf("create %q: files must be located in a directory", name))
	}
	if err := p.validate(); err != nil {
		return err
	}

	return fs.createFile(p)
}

// RemoveFile removes a file and releases all blocks of its chain.
func (fs *Fs) RemoveFile(name string) error {
	done, err := fs.begin()
	if err != nil {
		return err
	}
	defer done()

	p, err := parseLookup(name)
	if err != nil {
		return err
	}

	if p.isRoot() || p.isDirectory() {
		if _, err := fs.lookup(p); err != nil {
			return err
		}
		return checkpoint.Wrap(ErrIsDirectory, fmt.Errorf("unlink %q", name))
	}

	return fs.removeFile(p)
}

// openFile resolves the path of a file for reading or writing.
func (fs *Fs) openFile(name string) (fsPath, uint32, *directoryTable, int, error) {
	p, err := parseLookup(name)
	if err != nil {
		return fsPath{}, 0, nil, 0, err
	}

	if p.isRoot() || p.isDirectory() {
		if _, err := fs.lookup(p); err != nil {
			return fsPath{}, 0, nil, 0, err
		}
		return fsPath{}, 0, nil, 0, checkpoint.Wrap(ErrIsDirectory, fmt.Errorf("%q", name))
	}

	start, dir, err := fs.findDirectory(p.directory)
	if err != nil {
		return fsPath{}, 0, nil, 0, err
	}

	i, err := fs.findFile(dir, p)
	if err != nil {
		return fsPath{}, 0, nil, 0, err
	}

	return p, start, dir, i, nil
}

// Read reads up to len(buf) bytes of the file starting at offset.
// Reading over the end of the file returns less bytes without an error;
// an offset behind the end of the file results in ErrInvalidOffset.
func (fs *Fs) Read(name string, offset int64, buf []byte) (int, error) {
	done, err := fs.begin()
	if err != nil {
		return 0, err
	}
	defer done()

	_, _, dir, i, err := fs.openFile(name)
	if err != nil {
		return 0, err
	}

	return fs.readChain(dir.files[i], offset, buf)
}

// Write writes data into the file starting at offset, growing the file as needed.
// The offset may be at most the current size of the file.
//
// If the disk runs full while the chain is extended, the blocks already linked to the file
// stay allocated while the size of the file remains unchanged.
func (fs *Fs) Write(name string, offset int64, data []byte) (int, error) {
	done, err := fs.begin()
	if err != nil {
		return 0, err
	}
	defer done()

	_, start, dir, i, err := fs.openFile(name)
	if err != nil {
		return 0, err
	}

	record := &dir.files[i]
	if offset < 0 || offset > int64(record.Size) {
		return 0, checkpoint.Wrap(ErrInvalidOffset, fmt.Errorf("write %q at %d, size %d", name, offset, record.Size))
	}
	if len(data) == 0 {
		return 0, nil
	}

	n, err := fs.writeChain(record, offset, data)
	if err != nil {
		return n, err
	}

	fs.touch(record)
	if err := fs.writeDirectory(start, dir); err != nil {
		return n, err
	}
	return n, nil
}

// Truncate changes the size of a file. Shrinking releases the blocks which are not needed anymore,
// growing fills the file with zeros.
func (fs *Fs) Truncate(name string, size int64) error {
	done, err := fs.begin()
	if err != nil {
		return err
	}
	defer done()

	_, start, dir, i, err := fs.openFile(name)
	if err != nil {
		return err
	}

	if size < 0 {
		return checkpoint.Wrap(ErrInvalidOffset, fmt.Errorf("truncate %q to %d", name, size))
	}

	record := &dir.files[i]
	current := int64(record.Size)

	if size > current {
		if err := fs.zeroFill(record, current, size); err != nil {
			return err
		}
		fs.touch(record)
		return fs.writeDirectory(start, dir)
	}

	// The smaller size is persisted before the chain gets cut.
	// A chain longer than its size is still a valid file, a shorter one is not.
	if size < current {
		record.Size = uint64(size)
		fs.touch(record)
		if err := fs.writeDirectory(start, dir); err != nil {
			return err
		}
	}

	// Also drops blocks left behind by a write which ran out of space.
	tail, err := fs.cutChain(record.StartBlock, fs.geo.blocksFor(size))
	if err != nil {
		return err
	}

	// Release only after nothing references the blocks anymore.
	return fs.releaseBlocks(tail)
}

// Open checks that the path exists. There is no per-open state.
func (fs *Fs) Open(name string) error {
	_, err := fs.GetAttributes(name)
	return err
}

// Flush checks that the path exists. All writes are already persisted when a call returns.
func (fs *Fs) Flush(name string) error {
	_, err := fs.GetAttributes(name)
	return err
}

// Usage counts the allocated blocks.
func (fs *Fs) Usage() (Usage, error) {
	done, err := fs.begin()
	if err != nil {
		return Usage{}, err
	}
	defer done()

	allocated, err := fs.bitmap.allocated()
	if err != nil {
		return Usage{}, err
	}

	u := Usage{
		BlockSize:      fs.geo.blockSize,
		TotalBlocks:    fs.geo.totalBlocks,
		ReservedBlocks: 1 + fs.geo.bitmapBlocks,
	}
	for i, used := range allocated {
		if used && !fs.geo.isReserved(uint32(i)) {
			u.UsedBlocks++
		}
	}
	u.FreeBlocks = u.TotalBlocks - u.ReservedBlocks - u.UsedBlocks
	return u, nil
}

// touch stamps the record with the current time.
func (fs *Fs) touch(record *FileRecord) {
	record.WriteDate, record.WriteTime = FormatDateTime(fs.clock())
}
