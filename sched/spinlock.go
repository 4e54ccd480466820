// Package sched implements the scheduler and the synchronization
// primitives built on top of it: ticket spinlocks with IRQ save/restore,
// wait queues, mutexes, and the single global run queue with voluntary and
// preemptive context switches.
//
// sched is deliberately ignorant of proc.Process/proc.Thread: the only
// thread-shaped type it knows about is Thread, a minimal scheduling record
// (state, flags, preempt count, saved context pointer, queue link). proc
// embeds a sched.Thread inside its own, larger Thread struct the same way
// a real kernel separates "struct context" from "struct proc" — so the
// scheduler can switch stacks without reaching into process bookkeeping it
// has no business touching. External collaborators disable_irqs/
// enable_irqs are injected via SetIRQHooks, matching the dependency-
// injection idiom gopher-os-gopher-os uses for its frame allocator
// (vmm.SetFrameAllocator) and exception handlers (irq.HandleException).
package sched

import "sync/atomic"

var (
	disableIRQsFn func() uintptr
	enableIRQsFn  func(uintptr)
)

// SetIRQHooks wires the external disable_irqs/enable_irqs collaborators
// that LockIRQ/UnlockIRQ need. disable returns the prior IRQ state; enable
// restores it.
func SetIRQHooks(disable func() uintptr, enable func(uintptr)) {
	disableIRQsFn = disable
	enableIRQsFn = enable
}

// Spinlock is a ticket lock: a thread is granted the lock once `serving`
// catches up to the ticket it drew from `next`. On the single execution
// engine this core targets the spin path is unreachable in correct code,
// but the lock still orders critical sections against interrupt handlers.
type Spinlock struct {
	next    uint32
	serving uint32
}

// Lock acquires the lock, disabling preemption for the duration: holding a
// spinlock and then blocking (or being preempted) would let another thread
// spin forever on a lock its preempter can never release.
func (l *Spinlock) Lock() {
	preemptDisable()
	ticket := atomic.AddUint32(&l.next, 1) - 1
	for atomic.LoadUint32(&l.serving) != ticket {
		// unreachable on a single execution engine in correct code;
		// kept so the lock remains correct if this core ever grows
		// a second engine.
	}
}

// Unlock releases the lock and re-enables preemption, checking for a
// pending reschedule once the preempt-disable counter reaches zero.
func (l *Spinlock) Unlock() {
	atomic.AddUint32(&l.serving, 1)
	preemptEnable()
}

// LockIRQ saves the prior interrupt-enable state into *flags, masks
// interrupts, and acquires the lock. Used for critical sections that can
// also be entered from an IRQ handler.
func (l *Spinlock) LockIRQ(flags *uintptr) {
	if disableIRQsFn == nil {
		panic("sched: IRQ hooks not installed")
	}
	*flags = disableIRQsFn()
	l.Lock()
}

// UnlockIRQ releases the lock and restores the interrupt-enable state
// saved by the matching LockIRQ.
func (l *Spinlock) UnlockIRQ(flags uintptr) {
	l.Unlock()
	enableIRQsFn(flags)
}

// Locked reports whether the lock is currently held by anyone. Intended
// for assertions (Lockassert-style checks), not for acquiring the lock.
func (l *Spinlock) Locked() bool {
	return atomic.LoadUint32(&l.next) != atomic.LoadUint32(&l.serving)
}
