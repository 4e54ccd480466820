// Package pmm is the physical page frame allocator: a flat array of
// per-frame reference counts managed as a single contiguous zone, with
// next-fit search for runs of free frames.
package pmm

import (
	"coreos/errs"
	"coreos/sched"
)

// PageShift is the base-2 exponent of the page size.
const PageShift = 12

// PageSize is the size of one page frame in bytes.
const PageSize = 1 << PageShift

// Frame is a physical frame number: address = Frame * PageSize.
type Frame uint32

// Zone owns the free/used state of every frame between Base and
// Base+Count. There is exactly one Zone in this core; the type exists
// separately from the package-level state so a second zone could be added
// without touching the allocation algorithm.
type Zone struct {
	lock sched.Spinlock

	base  Frame
	count uint32

	refcnt []int32
	cursor uint32
	nfree  uint32
}

var zone Zone

// Init installs the single zone spanning [base, base+count) frames. Called
// once during boot before any other pmm operation.
func Init(base Frame, count uint32) {
	zone = Zone{
		base:   base,
		count:  count,
		refcnt: make([]int32, count),
		nfree:  count,
	}
}

func (z *Zone) index(f Frame) uint32 {
	return uint32(f - z.base)
}

// AllocPages allocates n contiguous free frames using next-fit search
// starting from the zone's cursor, wrapping around at most once. A run is
// accepted only if every frame in the candidate window is free; finding an
// in-use frame resets the candidate length and the search continues from
// the following frame. Returns errs.ENOMEM if no run of length n exists.
func AllocPages(n int) (Frame, errs.Err_t) {
	if n <= 0 {
		return 0, errs.EINVAL
	}
	z := &zone
	z.lock.Lock()
	defer z.lock.Unlock()

	total := z.count
	if uint32(n) > total {
		return 0, errs.ENOMEM
	}

	start := z.cursor
	runStart := uint32(0)
	runLen := uint32(0)
	for i := uint32(0); i < 2*total; i++ {
		idx := (start + i) % total
		if idx == 0 {
			// A run never continues from the last frame to the first.
			runLen = 0
		}
		if z.refcnt[idx] == 0 {
			if runLen == 0 {
				runStart = idx
			}
			runLen++
			if runLen == uint32(n) {
				for k := uint32(0); k < runLen; k++ {
					z.refcnt[runStart+k] = 1
				}
				z.nfree -= runLen
				z.cursor = (runStart + runLen) % total
				return z.base + Frame(runStart), 0
			}
		} else {
			runLen = 0
		}
	}
	return 0, errs.ENOMEM
}

// AllocPagesAt succeeds only if the n frames starting at addr are all
// free, then raises each to a refcount of 1.
func AllocPagesAt(addr Frame, n int) errs.Err_t {
	if n <= 0 {
		return errs.EINVAL
	}
	z := &zone
	z.lock.Lock()
	defer z.lock.Unlock()

	if addr < z.base || uint32(addr-z.base)+uint32(n) > z.count {
		return errs.EINVAL
	}
	idx := z.index(addr)
	for k := uint32(0); k < uint32(n); k++ {
		if z.refcnt[idx+k] != 0 {
			return errs.ENOMEM
		}
	}
	for k := uint32(0); k < uint32(n); k++ {
		z.refcnt[idx+k] = 1
	}
	z.nfree -= uint32(n)
	return 0
}

// FreePages decrements the refcount of each of the n frames starting at
// first; a frame becomes free once its refcount reaches zero.
func FreePages(first Frame, n int) {
	z := &zone
	z.lock.Lock()
	defer z.lock.Unlock()
	idx := z.index(first)
	for k := uint32(0); k < uint32(n); k++ {
		z.refcnt[idx+k]--
		if z.refcnt[idx+k] < 0 {
			panic("pmm: refcount underflow")
		}
		if z.refcnt[idx+k] == 0 {
			z.nfree++
		}
	}
}

// Get atomically increments the refcount of frame f, used when two address
// spaces come to share it under copy-on-write.
func Get(f Frame) {
	z := &zone
	z.lock.Lock()
	defer z.lock.Unlock()
	z.refcnt[z.index(f)]++
}

// Put atomically decrements the refcount of frame f and reports whether it
// reached zero (i.e. the frame is now free).
func Put(f Frame) bool {
	z := &zone
	z.lock.Lock()
	defer z.lock.Unlock()
	idx := z.index(f)
	z.refcnt[idx]--
	if z.refcnt[idx] < 0 {
		panic("pmm: refcount underflow")
	}
	free := z.refcnt[idx] == 0
	if free {
		z.nfree++
	}
	return free
}

// Refcount returns the current reference count of frame f, for
// diagnostics and tests.
func Refcount(f Frame) int32 {
	z := &zone
	z.lock.Lock()
	defer z.lock.Unlock()
	return z.refcnt[z.index(f)]
}

// Free reports the number of currently unreferenced frames in the zone.
func Free() uint32 {
	z := &zone
	z.lock.Lock()
	defer z.lock.Unlock()
	return z.nfree
}
