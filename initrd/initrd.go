// Package initrd parses the flat, read-only ramdisk image spec.md §6
// defines: a magic-prefixed header, a fixed-size directory of name/offset/
// length records, and the file data itself, exactly as laid out by the
// original kernel's fs/initrd.h and produced by tools/create_initrd.c.
// Each directory entry is exposed as a fileio.File so elfload and the exec
// path can page it in like any other backing file.
package initrd

import (
	"encoding/binary"

	"coreos/errs"
)

// Magic is the wire-format magic number, unchanged from the original
// kernel's INITRD_MAGIC.
const Magic = 0x00098119

// NameSize is the fixed width, in bytes, of a directory entry's
// NUL-terminated name field.
const NameSize = 128

const (
	headerSize = 8  // magic uint32 + nfiles uint32
	entrySize  = NameSize + 4 + 4
)

// Entry describes one file's location within the ramdisk image.
type Entry struct {
	Name   string
	Offset uint32
	Length uint32
}

// Image is a parsed ramdisk: the raw bytes plus its directory.
type Image struct {
	raw     []byte
	entries []Entry
}

// Parse validates raw's header and directory and returns the parsed
// image. It does not copy raw; callers must not mutate it afterward.
func Parse(raw []byte) (*Image, errs.Err_t) {
	if len(raw) < headerSize {
		return nil, errs.EINVAL
	}
	magic := binary.LittleEndian.Uint32(raw[0:4])
	if magic != Magic {
		return nil, errs.EINVAL
	}
	nfiles := binary.LittleEndian.Uint32(raw[4:8])

	dirEnd := headerSize + int(nfiles)*entrySize
	if dirEnd > len(raw) {
		return nil, errs.EINVAL
	}

	entries := make([]Entry, nfiles)
	for i := 0; i < int(nfiles); i++ {
		off := headerSize + i*entrySize
		nameBytes := raw[off : off+NameSize]
		name := cString(nameBytes)
		data := binary.LittleEndian.Uint32(raw[off+NameSize : off+NameSize+4])
		length := binary.LittleEndian.Uint32(raw[off+NameSize+4 : off+NameSize+8])
		entries[i] = Entry{Name: name, Offset: data, Length: length}
	}

	return &Image{raw: raw, entries: entries}, 0
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Entries returns the image's directory, in on-disk order.
func (img *Image) Entries() []Entry {
	return img.entries
}

// Open returns a fileio.File for the named entry, or nil if no entry
// matches name.
func (img *Image) Open(name string) *FileHandle {
	for i := range img.entries {
		if img.entries[i].Name == name {
			return &FileHandle{img: img, entry: &img.entries[i]}
		}
	}
	return nil
}

// FileHandle adapts one ramdisk entry to fileio.File.
type FileHandle struct {
	img   *Image
	entry *Entry
}

// Size returns the file's length in bytes.
func (f *FileHandle) Size() int64 {
	return int64(f.entry.Length)
}

// ReadPage copies min(len(buf), Size()-offset) bytes starting at offset
// (relative to the file, not the ramdisk image) into buf.
func (f *FileHandle) ReadPage(offset int64, buf []byte) (int, error) {
	if offset >= int64(f.entry.Length) {
		return 0, nil
	}
	start := int64(f.entry.Offset) + offset
	remain := int64(f.entry.Length) - offset
	n := int64(len(buf))
	if n > remain {
		n = remain
	}
	copy(buf, f.img.raw[start:start+n])
	return int(n), nil
}
