package proc

import (
	"reflect"

	"coreos/sched"
	"coreos/vmspace"
)

// newContext returns the stack-pointer value to install as a freshly
// created thread's saved context so that the first contextSwitch into it
// resumes execution at entry. The concrete frame layout contextSwitch's
// register-restore sequence expects to find there is architecture
// specific, so — like sched's own contextSwitch — this function is
// declared without a body and supplied by the arch-specific assembly
// stub; the kernel stack buffer is otherwise uninitialized.
func newContext(stack []byte, entry uintptr) uintptr

// idleLoop is the body of the permanent idle thread: it never blocks and
// never exits, so the run queue this core's scheduler manages is never
// observed empty (spec.md §9's Open Question on an always-present idle
// thread is resolved this way; see DESIGN.md).
func idleLoop() {
	for {
		sched.Yield()
	}
}

// NewInit statically constructs process 1, the reparenting target for
// orphaned children and the only process in this core not created by
// Fork. space is init's already-populated address space (typically
// produced by elfload.Load against the initrd's init binary) and entry is
// the program counter its single thread resumes at once scheduled.
func NewInit(space *vmspace.Space, entry uintptr) *Process {
	if Init != nil {
		panic("proc: NewInit called twice")
	}
	t := newThread()
	p := &Process{
		Pid:   allocPid(),
		Space: space,
	}
	t.Tid = 1
	t.Proc = p
	t.State = sched.Runnable
	t.Ctx = newContext(t.kstack, entry)
	p.threads = append(p.threads, t)

	Init = p
	sched.MakeRunnable(&t.Thread)
	return p
}

// NewIdle constructs the permanent idle thread described by idleLoop and
// makes it runnable. It belongs to no process — it never touches user
// memory and is never reaped — so it is tracked only by sched, not by
// any Process's thread list.
func NewIdle() *Thread {
	t := newThread()
	t.Tid = 0
	t.State = sched.Runnable
	t.Ctx = newContext(t.kstack, reflect.ValueOf(idleLoop).Pointer())
	sched.MakeRunnable(&t.Thread)
	return t
}
