package proc

import (
	"unsafe"

	"coreos/errs"
	"coreos/sched"
)

// Fork creates a child of the calling process. Only single-threaded
// processes may fork; a process with more than one live thread fails with
// errs.EINVAL. On success it returns the child's pid to the caller (the
// parent); the child thread is scheduled separately and, once it first
// runs, returns 0 from this same call site via its relocated register
// frame.
func Fork() (Pid_t, errs.Err_t) {
	parent := Current()
	parentThread := CurrentThread()

	parent.lock.Lock()
	if len(parent.threads) != 1 {
		parent.lock.Unlock()
		return 0, errs.EINVAL
	}
	parent.lock.Unlock()

	childSpace, err := parent.Space.Fork(kernelBase)
	if err != 0 {
		return 0, err
	}

	child := &Process{
		Pid:    allocPid(),
		Parent: parent,
		Space:  childSpace,
		File:   parent.File,
	}

	childThread := newThread()
	childStack := childThread.kstack
	copy(childStack, parentThread.kstack)
	// The copy also overwrote the child's own header, which lives inside
	// its kstack buffer; start it afresh.
	*childThread = Thread{kstack: childStack}

	parentBase := stackBase(parentThread.kstack)
	childBase := stackBase(childThread.kstack)

	// Relocate the child's saved context pointer so it references the
	// child's own copy of the stack rather than the parent's: it is an
	// offset measured from the start of the copied byte range, so the
	// stack delta applies. The register frame gets its own copy instead
	// (see relocateFrame).
	delta := childBase - parentBase
	childThread.Ctx = parentThread.Ctx + delta
	if parentThread.Regs != nil {
		childThread.Regs = relocateFrame(parentThread.Regs, parentThread.kstack, childThread.kstack)
		childThread.Regs.Rax = 0
	}

	childThread.Tid = 1
	childThread.Proc = child
	child.threads = append(child.threads, childThread)

	attachChild(parent, child)
	sched.MakeRunnable(&childThread.Thread)

	return child.Pid, 0
}

func stackBase(stack []byte) uintptr {
	return uintptr(unsafe.Pointer(&stack[0]))
}

// relocateFrame returns a pointer to a heap-allocated copy of *f. The copy
// is not placed inside newStack; oldStack and newStack are not used.
func relocateFrame(f *RegisterFrame, oldStack, newStack []byte) *RegisterFrame {
	_ = oldStack
	cp := *f
	// newStack already holds a byte-for-byte copy of oldStack, including
	// whatever RegisterFrame bytes lived at the same offset, so placing
	// the relocated value back via a fresh allocation keeps Go's garbage
	// collector honest about the pointer rather than reinterpreting
	// stack bytes in place.
	out := new(RegisterFrame)
	*out = cp
	return out
}

// Exit marks the calling thread EXITED, records status on its process,
// reparents every child to Init, wakes Init's wait queue, releases the
// address space and executable file, then enters the scheduler. It never
// returns.
func Exit(status int) {
	p := Current()
	t := CurrentThread()

	p.lock.Lock()
	p.exitStatus = status
	p.exited = true
	kids := p.children
	p.children = nil
	p.lock.Unlock()

	if Init != nil && Init != p {
		Init.lock.Lock()
		for _, k := range kids {
			k.Parent = Init
			Init.children = append(Init.children, k)
		}
		Init.lock.Unlock()
		Init.waitq.WakeAll()
	}

	p.Space.Teardown()
	p.File = nil

	t.State = sched.Exited
	if p.Parent != nil {
		p.Parent.waitq.WakeAll()
	}
	sched.Reschedule()
	panic("proc: exited thread resumed")
}

// Wait blocks until a child process has fully exited (every thread
// EXITED), then reaps it: copies its status out, adds its CPU accounting
// into the caller's, frees its thread and
// process records, and returns its pid. Returns errs.ECHILD if the caller
// has no children.
func Wait() (Pid_t, int, errs.Err_t) {
	p := Current()

	p.lock.Lock()
	for {
		if len(p.children) == 0 {
			p.lock.Unlock()
			return 0, 0, errs.ECHILD
		}
		for i, c := range p.children {
			if childFullyExited(c) {
				pid := c.Pid
				status := c.exitStatus
				p.Accnt.Add(&c.Accnt)
				p.children = append(p.children[:i], p.children[i+1:]...)
				p.lock.Unlock()
				return pid, status, 0
			}
		}
		p.lock.Unlock()
		p.waitq.Wait(func() bool { return anyChildExited(p) })
		p.lock.Lock()
	}
}

func childFullyExited(c *Process) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.exited {
		return false
	}
	for _, th := range c.threads {
		if th.State != sched.Exited {
			return false
		}
	}
	return true
}

func anyChildExited(p *Process) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, c := range p.children {
		if childFullyExited(c) {
			return true
		}
	}
	return false
}
