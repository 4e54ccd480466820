// Package vmspace maintains the authoritative list of logical mappings
// for an address space, resolves page faults against it, and implements
// mmap/munmap and the copy-on-write fork.
package vmspace

import (
	"unsafe"

	"coreos/errs"
	"coreos/fileio"
	"coreos/kmap"
	"coreos/mmu"
	"coreos/pmm"
	"coreos/sched"
)

// frameBytes views the page-sized region starting at a kernel virtual
// address (as returned by kmap.Map) as a byte slice.
func frameBytes(va uintptr) []byte {
	return (*[pmm.PageSize]byte)(unsafe.Pointer(va))[:]
}

// Kind distinguishes how a region's pages are populated on first touch.
type Kind int

const (
	Anonymous Kind = iota
	FileBacked
)

// Region is one entry in an address space's ordered, non-overlapping
// region list.
type Region struct {
	Start uintptr // page-aligned
	Pages uint32

	Flags mmu.Flags // Present is never set here; it is added at map time
	Kind  Kind

	File   fileio.File
	Offset int64 // byte offset into File corresponding to Start
}

func (r *Region) end() uintptr { return r.Start + uintptr(r.Pages)*pmm.PageSize }

// MaxMappedPages bounds how many pages a single address space may have
// mapped at once. There is no dedicated budget-tracking package in this
// core — the teaching kernel's separate bounds/resource-accounting layer
// had no implementation available to adapt, so the counter lives directly
// on Space instead of behind its own package.
const MaxMappedPages = 1 << 20

// Space is one process's address space: an ordered region list plus the
// hardware page tables that realize it.
type Space struct {
	lock sched.Spinlock

	MMU     mmu.Space
	regions []*Region

	mappedPages uint32
}

// NewSpace allocates a fresh page directory and an empty region list.
func NewSpace() (*Space, errs.Err_t) {
	m, err := mmu.NewSpace()
	if err != 0 {
		return nil, err
	}
	return &Space{MMU: m}, 0
}

func roundDown(v, b uintptr) uintptr { return v - v%b }
func roundUp(v, b uintptr) uintptr   { return roundDown(v+b-1, b) }

// findOverlap returns the first region that overlaps [start, start+pages).
func (s *Space) findOverlap(start uintptr, pages uint32) *Region {
	end := start + uintptr(pages)*pmm.PageSize
	for _, r := range s.regions {
		if start < r.end() && r.Start < end {
			return r
		}
	}
	return nil
}

func (s *Space) insert(r *Region) {
	i := 0
	for i < len(s.regions) && s.regions[i].Start < r.Start {
		i++
	}
	s.regions = append(s.regions, nil)
	copy(s.regions[i+1:], s.regions[i:])
	s.regions[i] = r
}

func (s *Space) regionAt(va uintptr) *Region {
	for _, r := range s.regions {
		if va >= r.Start && va < r.end() {
			return r
		}
	}
	return nil
}

// Mmap installs a new region of length bytes (rounded up to a whole
// number of pages) at addr with the given permission flags. addr and
// offset must already be page aligned. SHARED mappings are not supported
// by this core: a request with shared set is rejected with errs.EINVAL
// rather than silently treated as private. Returns the starting address.
func (s *Space) Mmap(addr uintptr, length int, flags mmu.Flags, shared bool, file fileio.File, offset int64) (uintptr, errs.Err_t) {
	if shared {
		return 0, errs.EINVAL
	}
	if addr%pmm.PageSize != 0 || offset%pmm.PageSize != 0 || length <= 0 {
		return 0, errs.EINVAL
	}
	pages := uint32(roundUp(uintptr(length), pmm.PageSize) / pmm.PageSize)

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.findOverlap(addr, pages) != nil {
		return 0, errs.EINVAL
	}
	if s.mappedPages+pages > MaxMappedPages {
		return 0, errs.ENOMEM
	}

	r := &Region{Start: addr, Pages: pages, Flags: flags, Offset: offset}
	if file != nil {
		r.Kind = FileBacked
		r.File = file
	} else {
		r.Kind = Anonymous
	}
	s.insert(r)
	return addr, 0
}

// Munmap unmaps every page in [addr, addr+length), releasing the
// underlying frames and trimming or removing the regions that covered
// them. Freeing the last mapping to a frame releases it back to the
// allocator.
func (s *Space) Munmap(addr uintptr, length int) errs.Err_t {
	if addr%pmm.PageSize != 0 || length <= 0 {
		return errs.EINVAL
	}
	pages := uint32(roundUp(uintptr(length), pmm.PageSize) / pmm.PageSize)
	end := addr + uintptr(pages)*pmm.PageSize

	s.lock.Lock()
	defer s.lock.Unlock()

	for va := addr; va < end; va += pmm.PageSize {
		if f, ok := mmu.UnmapPage(s.MMU, va); ok {
			pmm.Put(f)
			s.mappedPages--
		}
	}
	mmu.TLBInvalidate(addr, uintptr(pages)*pmm.PageSize)
	mmu.ReclaimEmptyTables(s.MMU)

	s.trimRegions(addr, end)
	return 0
}

func (s *Space) trimRegions(start, end uintptr) {
	var kept []*Region
	for _, r := range s.regions {
		switch {
		case end <= r.Start || r.end() <= start:
			kept = append(kept, r)
		case start <= r.Start && end >= r.end():
			// fully removed
		case start <= r.Start:
			shift := (end - r.Start) / pmm.PageSize
			r.Start = end
			r.Pages -= uint32(shift)
			r.Offset += int64(shift) * pmm.PageSize
			kept = append(kept, r)
		case end >= r.end():
			r.Pages = uint32((start - r.Start) / pmm.PageSize)
			kept = append(kept, r)
		default:
			// split into two
			tailPages := uint32((r.end() - end) / pmm.PageSize)
			tail := &Region{
				Start: end, Pages: tailPages, Flags: r.Flags, Kind: r.Kind,
				File: r.File, Offset: r.Offset + int64(end-r.Start),
			}
			r.Pages = uint32((start - r.Start) / pmm.PageSize)
			kept = append(kept, r, tail)
		}
	}
	s.regions = kept
}

// FaultKind classifies the access that triggered a page fault.
type FaultKind struct {
	Write      bool
	User       bool
	WasPresent bool
}

// Fault resolves a page fault at virtual address va. It never touches
// the MMU for kernel-address, no-region, or permission-violating faults:
// a supervisor-mode fault on a kernel address panics, and the others are
// returned as errs.EFAULT for the caller (the trap handler) to turn into
// process termination. A fault on a page that is already mapped with the
// access it needs returns 0 without changing the mapping.
func (s *Space) Fault(va uintptr, fk FaultKind, kernelBase uintptr) errs.Err_t {
	page := roundDown(va, pmm.PageSize)

	if va >= kernelBase {
		if !fk.User {
			panic(&errs.Fault{Module: "vmspace", Message: "supervisor fault on kernel address"})
		}
		return errs.EFAULT
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	r := s.regionAt(page)
	if r == nil {
		return errs.EFAULT
	}

	if fk.Write && r.Flags&mmu.Write == 0 {
		// The region itself is not writable (e.g. an ELF text segment
		// mapped R|X): the present-but-not-writable PTE a COW mapping
		// would also show is, here, the actual enforced permission, not
		// a COW marker. Only a region whose logical Flags grant write
		// can ever have a present+write fault mean COW.
		return errs.EFAULT
	}
	if _, cur, mapped := mmu.Translate(s.MMU, page); mapped && (!fk.Write || cur&mmu.Write != 0) {
		// Already resolved by an earlier fault on this page.
		return 0
	}
	if fk.WasPresent && fk.Write {
		return s.resolveCOW(r, page)
	}

	switch r.Kind {
	case Anonymous:
		return s.resolveAnon(r, page)
	case FileBacked:
		return s.resolveFile(r, page)
	default:
		return errs.EFAULT
	}
}

func (s *Space) installNewMapping(r *Region, page uintptr, f pmm.Frame) errs.Err_t {
	if err := mmu.MapPage(s.MMU, page, f, r.Flags|mmu.User); err != 0 {
		pmm.FreePages(f, 1)
		return err
	}
	s.mappedPages++
	mmu.TLBInvalidate(page, pmm.PageSize)
	return 0
}

func (s *Space) resolveAnon(r *Region, page uintptr) errs.Err_t {
	f, err := pmm.AllocPages(1)
	if err != 0 {
		return err
	}
	if err := zeroFrame(f); err != 0 {
		pmm.FreePages(f, 1)
		return err
	}
	return s.installNewMapping(r, page, f)
}

func (s *Space) resolveFile(r *Region, page uintptr) errs.Err_t {
	f, err := pmm.AllocPages(1)
	if err != 0 {
		return err
	}
	kva, err := kmap.Map(f)
	if err != 0 {
		pmm.FreePages(f, 1)
		return err
	}
	buf := frameBytes(kva)
	fileOff := r.Offset + int64(page-r.Start)
	n, ioErr := r.File.ReadPage(fileOff, buf)
	if ioErr != nil && n == 0 {
		kmap.Unmap(kva)
		pmm.FreePages(f, 1)
		return errs.EFAULT
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	kmap.Unmap(kva)
	return s.installNewMapping(r, page, f)
}

func (s *Space) resolveCOW(r *Region, page uintptr) errs.Err_t {
	old, _, ok := mmu.Translate(s.MMU, page)
	if !ok {
		return errs.EFAULT
	}
	if pmm.Refcount(old) == 1 {
		// Sole owner: just flip the mapping writable, nothing to copy.
		mmu.UnmapPage(s.MMU, page)
		if err := mmu.MapPage(s.MMU, page, old, r.Flags|mmu.User|mmu.Write); err != 0 {
			return err
		}
		mmu.TLBInvalidate(page, pmm.PageSize)
		return 0
	}

	fresh, err := pmm.AllocPages(1)
	if err != 0 {
		return err
	}
	if err := copyFrame(fresh, old); err != 0 {
		pmm.FreePages(fresh, 1)
		return err
	}
	mmu.UnmapPage(s.MMU, page)
	if err := mmu.MapPage(s.MMU, page, fresh, r.Flags|mmu.User|mmu.Write); err != 0 {
		pmm.FreePages(fresh, 1)
		return err
	}
	pmm.Put(old)
	mmu.TLBInvalidate(page, pmm.PageSize)
	return 0
}

func zeroFrame(f pmm.Frame) errs.Err_t {
	kva, err := kmap.Map(f)
	if err != 0 {
		return err
	}
	defer kmap.Unmap(kva)
	buf := frameBytes(kva)
	for i := range buf {
		buf[i] = 0
	}
	return 0
}

func copyFrame(dst, src pmm.Frame) errs.Err_t {
	dstVA, err := kmap.Map(dst)
	if err != 0 {
		return err
	}
	defer kmap.Unmap(dstVA)
	srcVA, err := kmap.Map(src)
	if err != 0 {
		return err
	}
	defer kmap.Unmap(srcVA)
	copy(frameBytes(dstVA), frameBytes(srcVA))
	return 0
}

// Fork clones the receiver's region list and page tables for a child
// address space: kernel directory entries are shared by value, and every
// present user mapping becomes copy-on-write in both parent and child.
func (s *Space) Fork(kernelBase uintptr) (*Space, errs.Err_t) {
	s.lock.Lock()
	defer s.lock.Unlock()

	child, err := NewSpace()
	if err != 0 {
		return nil, err
	}
	kernelPDStart := uint32(kernelBase >> 22)
	mmu.CopyKernelEntries(child.MMU, s.MMU, kernelPDStart)

	for _, r := range s.regions {
		rc := *r
		child.insert(&rc)

		for va := r.Start; va < r.end(); va += pmm.PageSize {
			f, _, ok := mmu.Translate(s.MMU, va)
			if !ok {
				continue
			}
			pmm.Get(f)
			mmu.UnmapPage(s.MMU, va)
			if err := mmu.MapPage(s.MMU, va, f, (r.Flags&^mmu.Write)|mmu.User); err != 0 {
				return nil, err
			}
			if err := mmu.MapPage(child.MMU, va, f, (r.Flags&^mmu.Write)|mmu.User); err != 0 {
				return nil, err
			}
			child.mappedPages++
		}
	}
	mmu.TLBFlush()
	return child, 0
}

// ZeroTailOfPage clears the bytes of the frame currently mapped at page
// from byteOffset to the end of the page. Used by the ELF loader when a
// segment's file size ends partway through a page that its memory size
// extends past: the page was already faulted in (and therefore holds file
// content) before the caller knows where the zero-fill boundary falls.
func (s *Space) ZeroTailOfPage(page uintptr, byteOffset uint) errs.Err_t {
	s.lock.Lock()
	defer s.lock.Unlock()
	f, _, ok := mmu.Translate(s.MMU, page)
	if !ok {
		return errs.EFAULT
	}
	kva, err := kmap.Map(f)
	if err != 0 {
		return err
	}
	defer kmap.Unmap(kva)
	buf := frameBytes(kva)
	for i := byteOffset; i < uint(len(buf)); i++ {
		buf[i] = 0
	}
	return 0
}

// Teardown unmaps every user region, releasing their frames. Called when
// a process's last thread exits.
func (s *Space) Teardown() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, r := range s.regions {
		for va := r.Start; va < r.end(); va += pmm.PageSize {
			if f, ok := mmu.UnmapPage(s.MMU, va); ok {
				pmm.Put(f)
			}
		}
	}
	s.regions = nil
	mmu.TLBFlush()
}
