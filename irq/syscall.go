package irq

import (
	"coreos/diag"
	"coreos/errs"
	"coreos/kstat"
	"coreos/proc"
	"coreos/sched"
)

// Syscall numbers. Each comment is the manifest entry cmd/syscallgen
// reads to regenerate this block; edit the number here, not in the
// generator's output.
const (
	SysWrite  = 0 //syscall:Write=0
	SysGetpid = 1 //syscall:Getpid=1
	SysFork   = 2 //syscall:Fork=2
	SysYield  = 3 //syscall:Yield=3
	SysExit   = 4 //syscall:Exit=4
	SysWait   = 5 //syscall:Wait=5
)

// SyscallVector is the vector the syscall trap gate fires on.
const SyscallVector = 0x80

func init() {
	Register(SyscallVector, syscallHandler)
}

// syscallHandler brackets dispatch with accounting (the dispatch itself is
// charged to Sysns through accnt.Finish; user-mode time is not recorded
// here), routes to the numbered syscall via f.Rax and writes the result
// back into f.Rax. An unknown syscall number is a fatal kernel fault.
func syscallHandler(vector int, f *proc.RegisterFrame) {
	p := proc.Current()
	if p == nil {
		return
	}
	sysStart := p.Accnt.Now()
	kstat.Core.Syscalls.Inc()

	var ret uintptr
	switch f.Rax {
	case SysWrite:
		n, err := sysWrite(f.Rbx, f.Rcx)
		ret = encodeResult(n, err)
	case SysGetpid:
		ret = uintptr(proc.Current().Pid)
	case SysFork:
		child, err := proc.Fork()
		ret = encodeResult(int(child), err)
	case SysYield:
		sched.Yield()
		ret = 0
	case SysExit:
		p.Accnt.Finish(sysStart)
		proc.Exit(int(f.Rbx))
		panic("irq: syscall exit returned")
	case SysWait:
		pid, status, err := proc.Wait()
		_ = status
		ret = encodeResult(int(pid), err)
	default:
		diag.Panic(&errs.Fault{Module: "irq", Message: "unknown syscall number"})
	}

	f.Rax = ret
	p.Accnt.Finish(sysStart)
}

// encodeResult packs a non-negative return value or a negative Err_t into
// the single-word convention this core's syscall ABI uses: negative means
// error, matching errs.Err_t's own negative-constant convention.
func encodeResult(n int, err errs.Err_t) uintptr {
	if err != 0 {
		return uintptr(err)
	}
	return uintptr(n)
}

// sysWrite copies up to length bytes from the calling process's address
// space at va and logs them via diag.Printf, the hard-coded sink
// DESIGN.md's Open Question resolution settled on in place of a real file
// descriptor table.
func sysWrite(va, length uintptr) (int, errs.Err_t) {
	p := proc.Current()
	ub := p.Space.NewUserbuf(va, int(length))
	buf := make([]byte, int(length))
	n, err := ub.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	diag.Printf("%s", string(buf[:n]))
	return n, 0
}
