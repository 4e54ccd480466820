package pmm

import (
	"coreos/errs"
	"coreos/sched"
	"testing"
)

func init() {
	sched.SetIRQHooks(func() uintptr { return 0 }, func(uintptr) {})
}

func TestAllocFreeRoundTrip(t *testing.T) {
	Init(100, 16)

	f, err := AllocPages(4)
	if err != 0 {
		t.Fatalf("AllocPages: %v", err)
	}
	if f != 100 {
		t.Fatalf("first alloc at %d, want 100", f)
	}
	if Free() != 12 {
		t.Fatalf("Free() = %d, want 12", Free())
	}

	FreePages(f, 4)
	if Free() != 16 {
		t.Fatalf("Free() = %d after release, want 16", Free())
	}
}

func TestAllocExhaustion(t *testing.T) {
	Init(0, 4)
	if _, err := AllocPages(4); err != 0 {
		t.Fatalf("AllocPages(4): %v", err)
	}
	if _, err := AllocPages(1); err != errs.ENOMEM {
		t.Fatalf("AllocPages(1) on exhausted zone = %v, want ENOMEM", err)
	}
}

func TestAllocPagesAtRejectsBusy(t *testing.T) {
	Init(0, 8)
	if _, err := AllocPages(2); err != 0 {
		t.Fatalf("AllocPages: %v", err)
	}
	if err := AllocPagesAt(0, 1); err != errs.ENOMEM {
		t.Fatalf("AllocPagesAt on busy frame = %v, want ENOMEM", err)
	}
	if err := AllocPagesAt(4, 2); err != 0 {
		t.Fatalf("AllocPagesAt on free frames: %v", err)
	}
}

func TestNextFitSkipsBusyRun(t *testing.T) {
	Init(0, 8)
	// Occupy frames 2-3, leaving a fragmented free list.
	if err := AllocPagesAt(2, 2); err != 0 {
		t.Fatalf("AllocPagesAt: %v", err)
	}
	f, err := AllocPages(3)
	if err != 0 {
		t.Fatalf("AllocPages(3): %v", err)
	}
	if f < 4 {
		t.Fatalf("AllocPages(3) returned %d, overlaps busy run [2,4)", f)
	}
}

func TestRefcountSharing(t *testing.T) {
	Init(0, 4)
	f, _ := AllocPages(1)
	Get(f)
	if got := Refcount(f); got != 2 {
		t.Fatalf("Refcount = %d, want 2", got)
	}
	if free := Put(f); free {
		t.Fatal("Put reported free with refcount still 1")
	}
	if free := Put(f); !free {
		t.Fatal("Put reported not free at refcount 0")
	}
}
