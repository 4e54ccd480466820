// Package mmu installs and removes single virtual-to-physical mappings in
// a named address space and invalidates the TLB, using a classic 32-bit
// two-level (page directory, page table) x86 layout.
package mmu

import (
	"unsafe"

	"coreos/errs"
	"coreos/pmm"
)

const entriesPerTable = 1024

// Flag bits of a page directory/table entry, matching the x86 PTE layout.
type Flags uint32

const (
	Present Flags = 1 << 0
	Write   Flags = 1 << 1
	User    Flags = 1 << 2
	Global  Flags = 1 << 8
)

const addrMask = 0xfffff000

// directMapBase is the kernel virtual address at which all physical
// memory is mapped 1:1, the same direct-map convention the teaching kernel
// this core is modeled on uses (mem.Vdirect) so that kernel code can read
// and write page-table contents by physical frame number without a
// temporary mapping. Boot installs the mapping and calls
// SetDirectMapBase before pmm/mmu are used.
var directMapBase uintptr

// SetDirectMapBase records the kernel virtual address at which physical
// memory beginning at frame 0 is mapped 1:1.
func SetDirectMapBase(base uintptr) {
	directMapBase = base
}

func table(f pmm.Frame) *[entriesPerTable]uint32 {
	addr := directMapBase + uintptr(f)*pmm.PageSize
	return (*[entriesPerTable]uint32)(unsafe.Pointer(addr))
}

// Space is an address space's root page directory.
type Space struct {
	PD pmm.Frame
}

// NewSpace allocates a zeroed page directory frame.
func NewSpace() (Space, errs.Err_t) {
	f, err := pmm.AllocPages(1)
	if err != 0 {
		return Space{}, err
	}
	pd := table(f)
	for i := range pd {
		pd[i] = 0
	}
	return Space{PD: f}, 0
}

func split(va uintptr) (pdIdx, ptIdx uint32) {
	pdIdx = uint32((va >> 22) & 0x3ff)
	ptIdx = uint32((va >> 12) & 0x3ff)
	return
}

// MapPage installs a mapping of virtual page va to physical frame f with
// the given flags, allocating an intermediate page table if none exists
// for va's directory slot yet. On out-of-memory while allocating that
// table it rolls back (frees) anything it just allocated for this call and
// returns errs.ENOMEM, leaving the address space exactly as it was.
func MapPage(s Space, va uintptr, f pmm.Frame, flags Flags) errs.Err_t {
	pdIdx, ptIdx := split(va)
	pd := table(s.PD)

	allocatedTable := false
	var pt pmm.Frame
	if pd[pdIdx]&uint32(Present) == 0 {
		var err errs.Err_t
		pt, err = pmm.AllocPages(1)
		if err != 0 {
			return errs.ENOMEM
		}
		ptTable := table(pt)
		for i := range ptTable {
			ptTable[i] = 0
		}
		pd[pdIdx] = (uint32(pt)*pmm.PageSize)&addrMask | uint32(Present|Write|User)
		allocatedTable = true
	} else {
		pt = pmm.Frame(pd[pdIdx]&addrMask) / pmm.PageSize
	}

	ptTable := table(pt)
	if ptTable[ptIdx]&uint32(Present) != 0 {
		if allocatedTable {
			pd[pdIdx] = 0
			pmm.FreePages(pt, 1)
		}
		return errs.EINVAL
	}
	ptTable[ptIdx] = (uint32(f) * pmm.PageSize & addrMask) | uint32(flags|Present)
	return 0
}

// UnmapPage clears the present bit of va's leaf entry, if present, and
// returns the frame that had been mapped there. ok is false if va was not
// mapped.
func UnmapPage(s Space, va uintptr) (f pmm.Frame, ok bool) {
	pdIdx, ptIdx := split(va)
	pd := table(s.PD)
	if pd[pdIdx]&uint32(Present) == 0 {
		return 0, false
	}
	pt := pmm.Frame(pd[pdIdx]&addrMask) / pmm.PageSize
	ptTable := table(pt)
	if ptTable[ptIdx]&uint32(Present) == 0 {
		return 0, false
	}
	f = pmm.Frame(ptTable[ptIdx]&addrMask) / pmm.PageSize
	ptTable[ptIdx] = 0
	return f, true
}

// ReclaimEmptyTables frees any intermediate page table under s that holds
// no present entries. Intended to be called after a batch of UnmapPage
// calls.
func ReclaimEmptyTables(s Space) {
	pd := table(s.PD)
	for i := range pd {
		if pd[i]&uint32(Present) == 0 {
			continue
		}
		pt := pmm.Frame(pd[i]&addrMask) / pmm.PageSize
		ptTable := table(pt)
		empty := true
		for _, e := range ptTable {
			if e&uint32(Present) != 0 {
				empty = false
				break
			}
		}
		if empty {
			pd[i] = 0
			pmm.FreePages(pt, 1)
		}
	}
}

// Translate returns the frame and flags currently mapped at va, if any.
func Translate(s Space, va uintptr) (f pmm.Frame, flags Flags, ok bool) {
	pdIdx, ptIdx := split(va)
	pd := table(s.PD)
	if pd[pdIdx]&uint32(Present) == 0 {
		return 0, 0, false
	}
	pt := pmm.Frame(pd[pdIdx]&addrMask) / pmm.PageSize
	ptTable := table(pt)
	e := ptTable[ptIdx]
	if e&uint32(Present) == 0 {
		return 0, 0, false
	}
	return pmm.Frame(e&addrMask) / pmm.PageSize, Flags(e &^ addrMask), true
}

// CopyKernelEntries copies every present directory entry at or above
// kernelPDStart from src into dst by value (never duplicating the
// underlying tables), the fork-time sharing rule for global kernel
// mappings.
func CopyKernelEntries(dst, src Space, kernelPDStart uint32) {
	s := table(src.PD)
	d := table(dst.PD)
	for i := kernelPDStart; i < entriesPerTable; i++ {
		d[i] = s[i]
	}
}

// tlbInvalidateFn and tlbFlushFn reach the invlpg / cr3-reload machine
// instructions. Like sched's IRQ hooks, these are injected rather than
// hard-linked so the logic above them is host-testable; boot wires the
// real ones before any address space is in use. Left nil (the zero value
// in a hosted test binary with no hardware underneath) they are no-ops,
// which is the correct behavior for a TLB that does not exist.
var (
	tlbInvalidateFn func(addr uintptr)
	tlbFlushFn      func()
)

// SetTLBHooks wires the architecture-specific TLB invalidation primitives.
func SetTLBHooks(invalidate func(addr uintptr), flush func()) {
	tlbInvalidateFn = invalidate
	tlbFlushFn = flush
}

// TLBInvalidate invalidates every page-aligned address in [addr, addr+len).
func TLBInvalidate(addr uintptr, length uintptr) {
	if tlbInvalidateFn == nil {
		return
	}
	start := addr &^ (pmm.PageSize - 1)
	end := (addr + length + pmm.PageSize - 1) &^ (pmm.PageSize - 1)
	for a := start; a < end; a += pmm.PageSize {
		tlbInvalidateFn(a)
	}
}

// TLBFlush invalidates the entire TLB.
func TLBFlush() {
	if tlbFlushFn != nil {
		tlbFlushFn()
	}
}
