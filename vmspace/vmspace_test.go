package vmspace

import (
	"testing"
	"unsafe"

	"coreos/errs"
	"coreos/kmap"
	"coreos/mmu"
	"coreos/pmm"
	"coreos/sched"
)

const kernelBase = 0xc0000000

var backing [256 * pmm.PageSize]byte

func setup(t *testing.T) *Space {
	t.Helper()
	sched.SetIRQHooks(func() uintptr { return 0 }, func(uintptr) {})
	pmm.Init(0, 256)
	mmu.SetDirectMapBase(uintptr(unsafe.Pointer(&backing[0])))
	s, err := NewSpace()
	if err != 0 {
		t.Fatalf("NewSpace: %v", err)
	}
	kmap.Init(kmap.Window{Base: 0xd0000000, Pages: 16, Space: s.MMU})
	return s
}

type fakeFile struct{ data []byte }

func (f *fakeFile) ReadPage(offset int64, buf []byte) (int, error) {
	if offset >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(buf, f.data[offset:])
	return n, nil
}
func (f *fakeFile) Size() int64 { return int64(len(f.data)) }

func TestAnonFaultZeroFills(t *testing.T) {
	s := setup(t)
	const va = 0x08000000
	if _, err := s.Mmap(va, pmm.PageSize, mmu.Write, false, nil, 0); err != 0 {
		t.Fatalf("Mmap: %v", err)
	}
	if err := s.Fault(va, FaultKind{Write: true, User: true}, kernelBase); err != 0 {
		t.Fatalf("Fault: %v", err)
	}
	f, _, ok := mmu.Translate(s.MMU, va)
	if !ok {
		t.Fatal("no mapping installed after anon fault")
	}
	buf := frameBytes(kernelDirectVA(f))
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func kernelDirectVA(f pmm.Frame) uintptr {
	return uintptr(unsafe.Pointer(&backing[0])) + uintptr(f)*pmm.PageSize
}

func TestFileBackedFaultShortReadZeroPads(t *testing.T) {
	s := setup(t)
	file := &fakeFile{data: []byte("hello")}
	const va = 0x09000000
	if _, err := s.Mmap(va, pmm.PageSize, mmu.Write, false, file, 0); err != 0 {
		t.Fatalf("Mmap: %v", err)
	}
	if err := s.Fault(va, FaultKind{User: true}, kernelBase); err != 0 {
		t.Fatalf("Fault: %v", err)
	}
	f, _, _ := mmu.Translate(s.MMU, va)
	buf := frameBytes(kernelDirectVA(f))
	if string(buf[:5]) != "hello" {
		t.Fatalf("buf[:5] = %q, want hello", buf[:5])
	}
	for i := 5; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("byte %d = %d, want 0 (short read pad)", i, buf[i])
		}
	}
}

func TestNoRegionFaultsEFAULT(t *testing.T) {
	s := setup(t)
	if err := s.Fault(0x70000000, FaultKind{User: true}, kernelBase); err != errs.EFAULT {
		t.Fatalf("Fault with no region = %v, want EFAULT", err)
	}
}

func TestWriteFaultOnReadOnlyRegionIsEFAULT(t *testing.T) {
	s := setup(t)
	file := &fakeFile{data: []byte("text")}
	const va = 0x0c000000
	// A read-only region with no Write bit, the way elfload installs a
	// .text segment: first touch populates it, then a later write fault
	// against the still-present mapping must be rejected, not silently
	// treated as a COW upgrade.
	if _, err := s.Mmap(va, pmm.PageSize, 0, false, file, 0); err != 0 {
		t.Fatalf("Mmap: %v", err)
	}
	if err := s.Fault(va, FaultKind{User: true}, kernelBase); err != 0 {
		t.Fatalf("first-touch read fault: %v", err)
	}
	if err := s.Fault(va, FaultKind{Write: true, User: true, WasPresent: true}, kernelBase); err != errs.EFAULT {
		t.Fatalf("write fault on read-only present mapping = %v, want EFAULT", err)
	}
	_, flags, ok := mmu.Translate(s.MMU, va)
	if !ok || flags&mmu.Write != 0 {
		t.Fatal("write fault on read-only region must not grant write permission")
	}
}

func TestForkSharesThenCOWSplits(t *testing.T) {
	s := setup(t)
	const va = 0x0a000000
	s.Mmap(va, pmm.PageSize, mmu.Write, false, nil, 0)
	s.Fault(va, FaultKind{Write: true, User: true}, kernelBase)

	parentFrame, _, _ := mmu.Translate(s.MMU, va)
	if pmm.Refcount(parentFrame) != 1 {
		t.Fatalf("parent frame refcount = %d before fork, want 1", pmm.Refcount(parentFrame))
	}

	child, err := s.Fork(kernelBase)
	if err != 0 {
		t.Fatalf("Fork: %v", err)
	}

	if pmm.Refcount(parentFrame) != 2 {
		t.Fatalf("frame refcount after fork = %d, want 2", pmm.Refcount(parentFrame))
	}
	_, flags, _ := mmu.Translate(s.MMU, va)
	if flags&mmu.Write != 0 {
		t.Fatal("parent mapping still writable after fork")
	}

	if err := s.Fault(va, FaultKind{Write: true, User: true, WasPresent: true}, kernelBase); err != 0 {
		t.Fatalf("COW fault in parent: %v", err)
	}
	newFrame, newFlags, _ := mmu.Translate(s.MMU, va)
	if newFrame == parentFrame {
		t.Fatal("COW fault did not allocate a fresh frame")
	}
	if newFlags&mmu.Write == 0 {
		t.Fatal("COW fault did not restore write permission")
	}
	if pmm.Refcount(parentFrame) != 1 {
		t.Fatalf("old frame refcount after COW split = %d, want 1", pmm.Refcount(parentFrame))
	}

	childFrame, _, ok := mmu.Translate(child.MMU, va)
	if !ok || childFrame != parentFrame {
		t.Fatal("child lost its share of the original frame")
	}
}

func TestMunmapReleasesFrame(t *testing.T) {
	s := setup(t)
	const va = 0x0b000000
	s.Mmap(va, pmm.PageSize, mmu.Write, false, nil, 0)
	s.Fault(va, FaultKind{Write: true, User: true}, kernelBase)
	f, _, _ := mmu.Translate(s.MMU, va)

	if err := s.Munmap(va, pmm.PageSize); err != 0 {
		t.Fatalf("Munmap: %v", err)
	}
	if _, _, ok := mmu.Translate(s.MMU, va); ok {
		t.Fatal("mapping still present after Munmap")
	}
	if pmm.Refcount(f) != 0 {
		t.Fatalf("frame refcount after Munmap = %d, want 0", pmm.Refcount(f))
	}
}

func TestMmapRejectsShared(t *testing.T) {
	s := setup(t)
	if _, err := s.Mmap(0x0c000000, pmm.PageSize, mmu.Write, true, nil, 0); err != errs.EINVAL {
		t.Fatalf("Mmap SHARED = %v, want EINVAL", err)
	}
}
