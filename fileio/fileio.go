// Package fileio defines the narrow file-backed-paging contract the
// address space subsystem consumes. Everything else about a filesystem —
// directories, writes, permissions beyond read — is deliberately outside
// this interface; a region only ever needs to read one page at a time from
// whatever backs it.
package fileio

// File is the contract a region's backing file must satisfy to support
// demand paging.
type File interface {
	// ReadPage copies min(PageSize, Size()-offset) bytes starting at
	// offset into buf and returns the number of bytes copied. offset is
	// always page-aligned. A short read (n < len(buf)) is not an error;
	// the caller zero-pads the remainder.
	ReadPage(offset int64, buf []byte) (n int, err error)

	// Size returns the file's length in bytes.
	Size() int64
}
