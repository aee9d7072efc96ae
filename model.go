// File model contains the structs which match the on-disk structures byte by byte.
// They are (de)serialized with encoding/binary, which does not add any padding.

package blockfs

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"strings"
)

const (
	rootBlock = 0

	// noBlock terminates a chain. Block 0 is the root block and never part of a chain.
	noBlock = 0

	formatVersion = 1

	maxNameLength      = 8
	maxExtensionLength = 3

	rootHeaderSize      = 48
	rootEntrySize       = 13
	directoryHeaderSize = 4
	fileRecordSize      = 29
	dataHeaderSize      = 4

	// checksumOffset is the byte offset of RootHeader.Checksum in block 0.
	checksumOffset = 40
)

var magic = [4]byte{'B', 'L', 'F', 'S'}

// RootHeader is stored at the beginning of block 0, directly followed by the root entries.
type RootHeader struct {
	Magic          [4]byte
	Version        uint16
	Reserved       uint16
	BlockSize      uint32
	TotalBlocks    uint32
	BitmapStart    uint32
	BitmapBlocks   uint32
	VolumeID       [16]byte
	Checksum       uint32
	DirectoryCount uint32
}

// RootEntry is one top level directory.
type RootEntry struct {
	Name       [maxNameLength + 1]byte
	StartBlock uint32
}

// DirectoryHeader is stored at the beginning of each directory block, directly followed by the file records.
type DirectoryHeader struct {
	FileCount uint32
}

// FileRecord is one file inside of a directory.
type FileRecord struct {
	Name       [maxNameLength + 1]byte
	Extension  [maxExtensionLength + 1]byte
	Size       uint64
	StartBlock uint32
	WriteTime  uint16
	WriteDate  uint16
}

// DataHeader is stored at the beginning of each block of a file.
type DataHeader struct {
	Next uint32
}

// rootTable is the decoded block 0.
type rootTable struct {
	header  RootHeader
	entries []RootEntry
}

// directoryTable is a decoded directory block.
type directoryTable struct {
	files []FileRecord
}

func (r *rootTable) find(name string) int {
	for i := range r.entries {
		if r.entries[i].name() == name {
			return i
		}
	}
	return -1
}

func (r *rootTable) remove(i int) {
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
}

func (d *directoryTable) find(name, extension string) int {
	for i := range d.files {
		if d.files[i].name() == name && d.files[i].extension() == extension {
			return i
		}
	}
	return -1
}

func (d *directoryTable) remove(i int) {
	d.files = append(d.files[:i], d.files[i+1:]...)
}

func (e RootEntry) name() string {
	return cString(e.Name[:])
}

func (f FileRecord) name() string {
	return cString(f.Name[:])
}

func (f FileRecord) extension() string {
	return cString(f.Extension[:])
}

// fullName returns name.ext or just name if there is no extension.
func (f FileRecord) fullName() string {
	if ext := f.extension(); ext != "" {
		return f.name() + "." + ext
	}
	return f.name()
}

// cString reads a NUL terminated (or NUL padded) string.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// putCString copies s into dst and NUL pads the rest. The caller checks the length.
func putCString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func encodeRoot(blockSize int, r *rootTable) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, blockSize))
	r.header.DirectoryCount = uint32(len(r.entries))
	r.header.Checksum = 0

	// Writing into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, r.header)
	_ = binary.Write(buf, binary.LittleEndian, r.entries)

	block := make([]byte, blockSize)
	copy(block, buf.Bytes())

	r.header.Checksum = crc32.ChecksumIEEE(block)
	binary.LittleEndian.PutUint32(block[checksumOffset:], r.header.Checksum)
	return block
}

// decodeRoot parses block 0. It validates only the structure, not the content of the header.
func decodeRoot(block []byte, maxDirectories int) (*rootTable, error) {
	r := &rootTable{}
	reader := bytes.NewReader(block)
	if err := binary.Read(reader, binary.LittleEndian, &r.header); err != nil {
		return nil, err
	}

	if int(r.header.DirectoryCount) > maxDirectories {
		return nil, ErrCorrupt
	}

	r.entries = make([]RootEntry, r.header.DirectoryCount)
	if err := binary.Read(reader, binary.LittleEndian, r.entries); err != nil {
		return nil, err
	}
	return r, nil
}

// rootChecksum calculates the checksum of block 0 as it is stored in the header.
func rootChecksum(block []byte) uint32 {
	c := make([]byte, len(block))
	copy(c, block)
	binary.LittleEndian.PutUint32(c[checksumOffset:], 0)
	return crc32.ChecksumIEEE(c)
}

func encodeDirectory(blockSize int, d *directoryTable) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, blockSize))
	_ = binary.Write(buf, binary.LittleEndian, DirectoryHeader{FileCount: uint32(len(d.files))})
	_ = binary.Write(buf, binary.LittleEndian, d.files)

	block := make([]byte, blockSize)
	copy(block, buf.Bytes())
	return block
}

func decodeDirectory(block []byte, maxFiles int) (*directoryTable, error) {
	reader := bytes.NewReader(block)

	var header DirectoryHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, err
	}

	if int(header.FileCount) > maxFiles {
		return nil, ErrCorrupt
	}

	d := &directoryTable{files: make([]FileRecord, header.FileCount)}
	if err := binary.Read(reader, binary.LittleEndian, d.files); err != nil {
		return nil, err
	}
	return d, nil
}

// nextOf reads the successor of a data block.
func nextOf(block []byte) uint32 {
	return binary.LittleEndian.Uint32(block)
}

func setNext(block []byte, next uint32) {
	binary.LittleEndian.PutUint32(block, next)
}

// validName checks a single path component against the 8.3 rules.
func validName(name string, maxLength int) error {
	if len(name) > maxLength {
		return ErrNameTooLong
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "\x00/") {
		return ErrInvalidName
	}
	return nil
}
