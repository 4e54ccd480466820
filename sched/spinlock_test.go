package sched

import (
	"sync"
	"testing"
)

func init() {
	// Tests run with no IRQ controller; LockIRQ/UnlockIRQ are exercised
	// through plain Lock/Unlock instead, but WaitQueue and Mutex still
	// reach the IRQ hooks, so install no-op stand-ins.
	SetIRQHooks(func() uintptr { return 0 }, func(uintptr) {})
}

func TestSpinlockMutualExclusion(t *testing.T) {
	var l Spinlock
	var counter int
	var wg sync.WaitGroup
	const goroutines = 50
	const iters = 200

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*iters {
		t.Fatalf("counter = %d, want %d", counter, goroutines*iters)
	}
}

func TestSpinlockLocked(t *testing.T) {
	var l Spinlock
	if l.Locked() {
		t.Fatal("fresh lock reports held")
	}
	l.Lock()
	if !l.Locked() {
		t.Fatal("held lock reports free")
	}
	l.Unlock()
	if l.Locked() {
		t.Fatal("released lock reports held")
	}
}
