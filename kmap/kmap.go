// Package kmap manages a bounded window of kernel virtual address space
// used for transient access to physical frames — e.g. zeroing a freshly
// allocated user frame or copying a file page into it before it is mapped
// into user space.
package kmap

import (
	"coreos/errs"
	"coreos/mmu"
	"coreos/pmm"
	"coreos/sched"
)

// Window describes the kernel VA range kmap manages and the address space
// (the kernel's own page tables) it installs mappings into.
type Window struct {
	Base  uintptr
	Pages uint32
	Space mmu.Space
}

var (
	win      Window
	lock     sched.Spinlock
	bitmap   []bool
	nextHint uint32
)

// Init installs the window. Called once during boot.
func Init(w Window) {
	win = w
	bitmap = make([]bool, w.Pages)
}

// Map claims a free slot in the window, maps f there with kernel
// read/write permissions, invalidates that address in the TLB, and
// returns the virtual address. Fails with errs.ENOMEM if every slot is in
// use.
func Map(f pmm.Frame) (uintptr, errs.Err_t) {
	lock.Lock()
	defer lock.Unlock()

	n := uint32(len(bitmap))
	for i := uint32(0); i < n; i++ {
		slot := (nextHint + i) % n
		if !bitmap[slot] {
			bitmap[slot] = true
			nextHint = (slot + 1) % n
			va := win.Base + uintptr(slot)*pmm.PageSize
			if err := mmu.MapPage(win.Space, va, f, mmu.Present|mmu.Write); err != 0 {
				bitmap[slot] = false
				return 0, err
			}
			mmu.TLBInvalidate(va, pmm.PageSize)
			return va, 0
		}
	}
	return 0, errs.ENOMEM
}

// Unmap removes the mapping installed by Map and frees its slot. addr must
// be a value previously returned by Map that has not yet been unmapped.
func Unmap(addr uintptr) {
	lock.Lock()
	defer lock.Unlock()

	slot := uint32((addr - win.Base) / pmm.PageSize)
	mmu.UnmapPage(win.Space, addr)
	mmu.TLBInvalidate(addr, pmm.PageSize)
	bitmap[slot] = false
}
