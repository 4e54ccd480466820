package initrd

import (
	"bytes"
	"encoding/binary"
	"testing"

	"coreos/errs"
)

func build(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var names []string
	for name := range files {
		names = append(names, name)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(names)))
	buf.Write(header)

	dataStart := headerSize + len(names)*entrySize
	offset := dataStart
	for _, name := range names {
		entry := make([]byte, entrySize)
		copy(entry[:NameSize], name)
		binary.LittleEndian.PutUint32(entry[NameSize:NameSize+4], uint32(offset))
		binary.LittleEndian.PutUint32(entry[NameSize+4:NameSize+8], uint32(len(files[name])))
		buf.Write(entry)
		offset += len(files[name])
	}
	for _, name := range names {
		buf.Write(files[name])
	}
	return buf.Bytes()
}

func TestParseAndOpenRoundTrips(t *testing.T) {
	raw := build(t, map[string][]byte{"init": []byte("hello, init!")})

	img, err := Parse(raw)
	if err != 0 {
		t.Fatalf("Parse: %v", err)
	}
	if len(img.Entries()) != 1 {
		t.Fatalf("len(Entries()) = %d, want 1", len(img.Entries()))
	}

	f := img.Open("init")
	if f == nil {
		t.Fatal("Open(\"init\") = nil")
	}
	if f.Size() != int64(len("hello, init!")) {
		t.Fatalf("Size() = %d, want %d", f.Size(), len("hello, init!"))
	}

	buf := make([]byte, f.Size())
	n, rerr := f.ReadPage(0, buf)
	if rerr != nil {
		t.Fatalf("ReadPage: %v", rerr)
	}
	if string(buf[:n]) != "hello, init!" {
		t.Fatalf("ReadPage = %q, want %q", buf[:n], "hello, init!")
	}
}

func TestOpenMissingReturnsNil(t *testing.T) {
	raw := build(t, map[string][]byte{"init": []byte("x")})
	img, err := Parse(raw)
	if err != 0 {
		t.Fatalf("Parse: %v", err)
	}
	if f := img.Open("nonexistent"); f != nil {
		t.Fatal("Open on missing name returned non-nil")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	raw := make([]byte, headerSize)
	if _, err := Parse(raw); err != errs.EINVAL {
		t.Fatalf("Parse with bad magic = %v, want EINVAL", err)
	}
}

func TestParseRejectsTruncatedDirectory(t *testing.T) {
	raw := build(t, map[string][]byte{"init": []byte("x")})
	truncated := raw[:headerSize+4]
	if _, err := Parse(truncated); err != errs.EINVAL {
		t.Fatalf("Parse on truncated directory = %v, want EINVAL", err)
	}
}
