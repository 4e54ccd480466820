package vmspace

import (
	"coreos/errs"
	"coreos/kmap"
	"coreos/mmu"
	"coreos/pmm"
)

// Userbuf assists copying bytes between a kernel buffer and a range of
// user virtual memory one mapped page at a time, atomically with respect
// to the address space's region/mapping state (the transfer holds the
// space's lock throughout), generalizing the teaching kernel's
// Userbuf_t/Uioread/Uiowrite pair (vm/userbuf.go) from its 64-bit,
// multi-page-table-level walk to this core's flat Translate lookup.
//
// A page that is not yet mapped is reported as errs.EFAULT rather than
// triggering page-in: unlike the teaching kernel, this core's copy path
// does not recursively invoke Fault, so a caller must ensure the range it
// names has already been touched (true for every §4.H syscall argument
// buffer, since user code cannot pass a pointer it has not itself faulted
// in by writing to it).
type Userbuf struct {
	Space *Space
	VA    uintptr
	Len   int
	off   int
}

// NewUserbuf begins a transfer of length bytes starting at va in s.
func (s *Space) NewUserbuf(va uintptr, length int) *Userbuf {
	return &Userbuf{Space: s, VA: va, Len: length}
}

// Remain reports how many bytes of the buffer have not yet been
// transferred.
func (ub *Userbuf) Remain() int { return ub.Len - ub.off }

// Uioread copies up to len(dst) bytes from user memory into dst.
func (ub *Userbuf) Uioread(dst []byte) (int, errs.Err_t) {
	return ub.tx(dst, false)
}

// Uiowrite copies up to len(src) bytes from src into user memory.
func (ub *Userbuf) Uiowrite(src []byte) (int, errs.Err_t) {
	return ub.tx(src, true)
}

func (ub *Userbuf) tx(buf []byte, write bool) (int, errs.Err_t) {
	ub.Space.lock.Lock()
	defer ub.Space.lock.Unlock()

	total := 0
	for len(buf) > 0 && ub.off < ub.Len {
		va := ub.VA + uintptr(ub.off)
		page := roundDown(va, pmm.PageSize)
		skew := int(va - page)

		f, flags, ok := mmu.Translate(ub.Space.MMU, page)
		if !ok || (write && flags&mmu.Write == 0) {
			return total, errs.EFAULT
		}

		kva, err := kmap.Map(f)
		if err != 0 {
			return total, err
		}
		frame := frameBytes(kva)

		avail := len(frame) - skew
		if left := ub.Len - ub.off; avail > left {
			avail = left
		}
		n := len(buf)
		if n > avail {
			n = avail
		}
		if write {
			copy(frame[skew:skew+n], buf[:n])
		} else {
			copy(buf[:n], frame[skew:skew+n])
		}
		kmap.Unmap(kva)

		buf = buf[n:]
		ub.off += n
		total += n
	}
	return total, 0
}
