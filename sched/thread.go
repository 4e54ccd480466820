package sched

// State is a thread's scheduling state. RUNNING is implicit: it is
// whichever RUNNABLE thread the scheduler currently has on CPU, and is not
// stored separately.
type State int

const (
	// Runnable threads sit on exactly one run or wait queue and are
	// eligible to be chosen by Switch.
	Runnable State = iota
	// Blocked threads sit on exactly one wait queue.
	Blocked
	// Exited threads own no mappings and no frames; they are reaped by
	// the parent's next wait() call.
	Exited
)

// Flag bits carried in Thread.Flags.
const (
	// FlagReschedule is set by the timer IRQ handler to request a
	// voluntary switch at the next safe point.
	FlagReschedule uint32 = 1 << iota
)

// Thread is the minimal scheduling-visible record for one thread: enough
// state for Switch to choose it, block it, or context-switch away from it.
// proc.Thread embeds one of these; sched never looks past it.
type Thread struct {
	State State
	Flags uint32

	// PreemptCount nests Spinlock.Lock/Unlock calls and explicit
	// preempt_disable/preempt_enable pairs; preemption is only
	// permitted to fire when it reaches zero.
	PreemptCount int32

	// Ctx is the saved stack pointer for this thread, written by the
	// outgoing side of a context switch and read by the incoming side.
	// It is opaque to sched: the actual register save/restore sequence
	// is arch-specific and lives behind contextSwitch.
	Ctx uintptr

	// link chains this Thread on whichever single queue currently owns
	// it (run queue or a wait queue), enforcing the at-most-one-queue
	// invariant with a single next pointer rather than ad-hoc
	// next/prev pairs.
	link *Thread
}

// preemptDisable increments the preempt-disable counter of the currently
// running thread. Called by Spinlock.Lock.
func preemptDisable() {
	t := Current()
	if t == nil {
		// Before the scheduler has a current thread (very early
		// boot), there is nothing to preempt.
		return
	}
	t.PreemptCount++
}

// preemptEnable decrements the preempt-disable counter of the currently
// running thread and, if it reaches zero, services a pending reschedule.
func preemptEnable() {
	t := Current()
	if t == nil {
		return
	}
	t.PreemptCount--
	if t.PreemptCount < 0 {
		panic("sched: preempt count underflow")
	}
	if t.PreemptCount == 0 && t.Flags&FlagReschedule != 0 {
		Reschedule()
	}
}
