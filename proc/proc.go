// Package proc implements the process and thread model: processes
// identified by a globally unique pid, parent/child relationships, and
// threads whose scheduling-visible state lives in an embedded sched.Thread.
package proc

import (
	"sync"
	"unsafe"

	"coreos/accnt"
	"coreos/errs"
	"coreos/fileio"
	"coreos/sched"
	"coreos/vmspace"
)

// StackPages is the size, in pages, of a thread's kernel stack including
// its header.
const StackPages = 2

// RegisterFrame is the saved general-purpose register frame a trap or
// syscall entry pushes onto a thread's kernel stack. Its layout mirrors
// the host ABI's callee-entry convention; only the fields the dispatcher
// touches are named here.
type RegisterFrame struct {
	Rax, Rbx, Rcx, Rdx uintptr
	Rsi, Rdi           uintptr
	PC                 uintptr // saved user-mode program counter
}

// Thread is one schedulable unit of a Process. It embeds sched.Thread as
// its first field so that a *sched.Thread obtained from sched.Current()
// can be recovered as a *Thread with a plain pointer cast — the same
// "recover the owning structure from an inner field" trick the low-level
// trap entry path uses to recover a Thread header by masking a kernel
// stack pointer, expressed here in a form the rest of this package can
// use without touching raw addresses.
type Thread struct {
	sched.Thread

	Proc *Process
	Tid  Tid_t

	Regs *RegisterFrame
	kstack []byte
}

// Tid_t is a thread id, unique within its owning process.
type Tid_t int

// Pid_t is a process id, globally unique and positive.
type Pid_t int

var (
	pidLock sync.Mutex
	nextPid Pid_t = 1
)

func allocPid() Pid_t {
	pidLock.Lock()
	defer pidLock.Unlock()
	p := nextPid
	nextPid++
	return p
}

// Process is a collection of threads sharing one address space.
type Process struct {
	lock sync.Mutex

	Pid    Pid_t
	Parent *Process

	children []*Process
	threads  []*Thread

	Space *vmspace.Space
	File  fileio.File

	Accnt accnt.Accnt_t

	exitStatus int
	exited     bool

	waitq sched.WaitQueue
}

// Init is process 1, statically constructed rather than created by fork,
// and distinguished as the reparenting target for orphaned children.
var Init *Process

// kernelBase is the virtual address at or above which the kernel's shared
// mappings live; every address-space operation that must distinguish user
// from kernel addresses is given this value.
var kernelBase uintptr

// SetKernelBase records the kernel/user split point. Called once during
// boot.
func SetKernelBase(base uintptr) {
	kernelBase = base
}

// newThread allocates a Thread together with its kernel stack (StackPages
// pages, with the Thread header itself occupying the low end) and returns
// it unattached to any process.
func newThread() *Thread {
	// kstack is over-allocated by one page and aligned up so the header
	// lives at a page boundary, matching the mask-to-find-header layout
	// a bare-metal entry stub relies on; CurrentThread() below does not
	// need the mask because sched.Current() already tracks the pointer
	// directly on this core's single execution engine.
	raw := make([]byte, (StackPages+1)*4096)
	base := (uintptr(unsafe.Pointer(&raw[0])) + 4095) &^ 4095
	hdr := (*Thread)(unsafe.Pointer(base))
	*hdr = Thread{kstack: raw}
	return hdr
}

// CurrentThread returns the process-level Thread owning the thread
// presently on CPU.
func CurrentThread() *Thread {
	t := sched.Current()
	if t == nil {
		return nil
	}
	return (*Thread)(unsafe.Pointer(t))
}

// Current returns the Process owning the thread presently on CPU.
func Current() *Process {
	t := CurrentThread()
	if t == nil {
		return nil
	}
	return t.Proc
}

func newProcess(parent *Process) (*Process, errs.Err_t) {
	space, err := vmspace.NewSpace()
	if err != 0 {
		return nil, err
	}
	p := &Process{
		Pid:    allocPid(),
		Parent: parent,
		Space:  space,
	}
	return p, 0
}

// attachChild links p under its parent. Caller must hold no lock on
// either process's ancestor.
func attachChild(parent, p *Process) {
	parent.lock.Lock()
	parent.children = append(parent.children, p)
	parent.lock.Unlock()
}
