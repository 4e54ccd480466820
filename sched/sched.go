package sched

// contextSwitch saves the callee-preserved registers of the outgoing
// thread, writes the outgoing stack pointer to *outCtx, loads inCtx into
// the stack pointer, and restores registers. The actual register
// save/restore sequence is architecture-specific machine code; this
// function is declared without a body and implemented by the arch-specific
// assembly stub, the same declare-without-body idiom gopher-os-gopher-os
// uses for archAcquireSpinlock.
func contextSwitch(outCtx *uintptr, inCtx uintptr)

// runq is the single global run queue. There is exactly one instance
// because this core targets a single execution engine: no SMP, so one
// runnable list and one lock suffice.
var runq struct {
	lock Spinlock
	head *Thread
	tail *Thread
}

var current *Thread

// Current returns the scheduling record of the thread presently on CPU,
// or nil before the first thread has been scheduled.
func Current() *Thread {
	return current
}

// SetCurrent installs t as the thread presently on CPU. Used once during
// boot to seed the very first thread; afterwards only Switch changes
// Current.
func SetCurrent(t *Thread) {
	current = t
}

func enqueue(t *Thread) {
	t.link = nil
	if runq.tail == nil {
		runq.head, runq.tail = t, t
		return
	}
	runq.tail.link = t
	runq.tail = t
}

func dequeue() *Thread {
	t := runq.head
	if t == nil {
		return nil
	}
	runq.head = t.link
	if runq.head == nil {
		runq.tail = nil
	}
	t.link = nil
	return t
}

// MakeRunnable marks t RUNNABLE and enqueues it on the run list. Must not
// be called on the currently running thread.
func MakeRunnable(t *Thread) {
	if t == current {
		panic("sched: MakeRunnable on current thread")
	}
	var flags uintptr
	runq.lock.LockIRQ(&flags)
	t.State = Runnable
	enqueue(t)
	runq.lock.UnlockIRQ(flags)
}

// Reschedule clears the reschedule flag on the current thread and invokes
// the switch.
func Reschedule() {
	if current != nil {
		current.Flags &^= FlagReschedule
	}
	Switch()
}

// Switch performs one scheduling decision: re-enqueue the outgoing thread
// if it is still runnable, dequeue the head of the run list, and context
// switch to it. The run list must never be empty — this core always keeps
// a permanent idle thread runnable (see DESIGN.md) — so an empty dequeue
// here is a corrupted-invariant condition, not a recoverable one.
func Switch() {
	var flags uintptr
	runq.lock.LockIRQ(&flags)

	out := current
	if out != nil && out.State == Runnable {
		enqueue(out)
	}

	next := dequeue()
	if next == nil {
		panic("sched: run queue empty")
	}

	if next == out {
		runq.lock.UnlockIRQ(flags)
		return
	}

	current = next
	var outCtx *uintptr
	if out != nil {
		outCtx = &out.Ctx
	} else {
		var discard uintptr
		outCtx = &discard
	}
	// The scheduler lock is held across the switch by the outgoing
	// thread; the incoming thread's first instructions after
	// contextSwitch release it. Both paths release the same lock value
	// captured here.
	contextSwitch(outCtx, next.Ctx)
	runq.lock.UnlockIRQ(flags)
}

// Yield voluntarily gives up the CPU without blocking; the current thread
// remains RUNNABLE and is simply re-enqueued behind whichever threads are
// already waiting.
func Yield() {
	Switch()
}
