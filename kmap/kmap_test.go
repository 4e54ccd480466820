package kmap

import (
	"testing"
	"unsafe"

	"coreos/errs"
	"coreos/mmu"
	"coreos/pmm"
	"coreos/sched"
)

var backing [32 * pmm.PageSize]byte

func setup(t *testing.T, windowPages uint32) {
	sched.SetIRQHooks(func() uintptr { return 0 }, func(uintptr) {})
	pmm.Init(0, 32)
	mmu.SetDirectMapBase(uintptr(unsafe.Pointer(&backing[0])))
	space, err := mmu.NewSpace()
	if err != 0 {
		t.Fatalf("NewSpace: %v", err)
	}
	Init(Window{Base: 0x90000000, Pages: windowPages, Space: space})
}

func TestMapUnmapRoundTrip(t *testing.T) {
	setup(t, 4)
	f, _ := pmm.AllocPages(1)

	va, err := Map(f)
	if err != 0 {
		t.Fatalf("Map: %v", err)
	}
	got, _, ok := mmu.Translate(win.Space, va)
	if !ok || got != f {
		t.Fatal("Map did not install the expected mapping")
	}

	Unmap(va)
	if _, _, ok := mmu.Translate(win.Space, va); ok {
		t.Fatal("Unmap left a mapping in place")
	}
}

func TestWindowExhaustion(t *testing.T) {
	setup(t, 2)
	f1, _ := pmm.AllocPages(1)
	f2, _ := pmm.AllocPages(1)
	f3, _ := pmm.AllocPages(1)

	if _, err := Map(f1); err != 0 {
		t.Fatalf("Map 1: %v", err)
	}
	if _, err := Map(f2); err != 0 {
		t.Fatalf("Map 2: %v", err)
	}
	if _, err := Map(f3); err != errs.ENOMEM {
		t.Fatalf("Map 3 = %v, want ENOMEM", err)
	}
}

func TestSlotsReusedAfterUnmap(t *testing.T) {
	setup(t, 1)
	f1, _ := pmm.AllocPages(1)
	f2, _ := pmm.AllocPages(1)

	va, err := Map(f1)
	if err != 0 {
		t.Fatalf("Map: %v", err)
	}
	Unmap(va)

	if _, err := Map(f2); err != 0 {
		t.Fatalf("Map after Unmap: %v", err)
	}
}
