// Package elfload parses a 32-bit ELF executable and installs its loadable
// segments into an address space, using the standard library's debug/elf
// reader the way a hosted Go program would — the ELF header itself is a
// stable, well-specified binary format that does not benefit from a
// hand-rolled parser when the toolchain already ships one.
package elfload

import (
	"debug/elf"
	"io"

	"coreos/errs"
	"coreos/fileio"
	"coreos/mmu"
	"coreos/vmspace"
)

// fileReader adapts a fileio.File to io.ReaderAt so debug/elf can parse it
// without requiring the whole image to be read into memory up front.
type fileReader struct{ f fileio.File }

func (r fileReader) ReadAt(p []byte, off int64) (int, error) {
	total := 0
	for total < len(p) {
		pageOff := off + int64(total)
		pageBase := pageOff &^ (pageSize - 1)
		skew := int(pageOff - pageBase)

		var page [pageSize]byte
		n, err := r.f.ReadPage(pageBase, page[:])
		if skew >= n {
			if err != nil {
				return total, err
			}
			return total, io.EOF
		}

		copied := copy(p[total:], page[skew:n])
		total += copied
		if err != nil && copied == 0 {
			return total, err
		}
	}
	return total, nil
}

const pageSize = 4096

// Load parses file as a 32-bit little-endian i386 ELF executable and
// installs each PT_LOAD segment into space as a private, file-backed
// fixed mapping, computing permission flags from the segment's ELF flags.
// On any failure it unmaps whatever it had already installed for this
// call and returns the error; on success it returns the entry point.
func Load(space *vmspace.Space, file fileio.File, kernelBase uintptr) (entry uintptr, err errs.Err_t) {
	f, ferr := elf.NewFile(fileReader{file})
	if ferr != nil {
		return 0, errs.EINVAL
	}
	if f.Class != elf.ELFCLASS32 || f.Data != elf.ELFDATA2LSB ||
		f.Machine != elf.EM_386 || f.Type != elf.ET_EXEC {
		return 0, errs.EPERM
	}

	type segment struct {
		va     uintptr
		length int
	}
	var installed []segment
	rollback := func() {
		for _, seg := range installed {
			space.Munmap(seg.va, seg.length)
		}
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		var flags mmu.Flags
		if prog.Flags&elf.PF_W != 0 {
			flags |= mmu.Write
		}
		// PF_X carries no distinct hardware bit in this 32-bit, non-NX
		// design; executability follows from the mapping being present
		// and user-accessible, matching how the rest of this core
		// tracks region permissions.

		start := prog.Vaddr &^ (pageSize - 1)
		skew := prog.Vaddr - start
		memEnd := prog.Vaddr + prog.Memsz
		length := int((memEnd - start + pageSize - 1) &^ (pageSize - 1))

		if _, merr := space.Mmap(uintptr(start), length, flags, false, file, int64(prog.Off)-int64(skew)); merr != 0 {
			rollback()
			return 0, merr
		}
		installed = append(installed, segment{uintptr(start), length})

		if prog.Filesz < prog.Memsz {
			if zerr := zeroTail(space, start, skew, prog.Filesz, kernelBase); zerr != 0 {
				rollback()
				return 0, zerr
			}
		}
	}

	return uintptr(f.Entry), 0
}

// zeroTail handles the case where a segment's in-memory size exceeds its
// file size and the boundary between file-backed and zero-fill bytes
// falls in the middle of a page: the short-read policy already zero-pads
// any page that was never written to the file, but a page straddling the
// boundary is read from the file and needs its tail explicitly cleared
// once it is faulted in.
func zeroTail(space *vmspace.Space, segStart, skew uint64, filesz uint64, kernelBase uintptr) errs.Err_t {
	boundary := segStart + skew + filesz
	if boundary%pageSize == 0 {
		return 0
	}
	page := boundary &^ (pageSize - 1)
	if err := space.Fault(uintptr(page), vmspace.FaultKind{User: true}, kernelBase); err != 0 {
		return err
	}
	return space.ZeroTailOfPage(uintptr(page), uint(boundary%pageSize))
}
