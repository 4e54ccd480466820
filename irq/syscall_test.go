package irq

import (
	"testing"
	"unsafe"

	"coreos/diag"
	"coreos/kmap"
	"coreos/mmu"
	"coreos/pmm"
	"coreos/proc"
	"coreos/sched"
	"coreos/vmspace"
)

var backing [64 * pmm.PageSize]byte

type capSink struct{ buf []byte }

func (c *capSink) WriteByte(b byte) { c.buf = append(c.buf, b) }

func setupThread(t *testing.T) (*proc.Process, *proc.Thread) {
	t.Helper()
	sched.SetIRQHooks(func() uintptr { return 0 }, func(uintptr) {})
	pmm.Init(0, 64)
	mmu.SetDirectMapBase(uintptr(unsafe.Pointer(&backing[0])))

	space, err := vmspace.NewSpace()
	if err != 0 {
		t.Fatalf("NewSpace: %v", err)
	}
	kmap.Init(kmap.Window{Base: 0xd0000000, Pages: 16, Space: space.MMU})
	p := &proc.Process{Pid: 1, Space: space}
	th := &proc.Thread{Proc: p, Regs: &proc.RegisterFrame{}}
	sched.SetCurrent(&th.Thread)
	return p, th
}

func TestSyscallGetpid(t *testing.T) {
	_, th := setupThread(t)
	th.Regs.Rax = SysGetpid

	syscallHandler(SyscallVector, th.Regs)

	if th.Regs.Rax != 1 {
		t.Fatalf("getpid returned %d, want 1", th.Regs.Rax)
	}
}

func TestSysWriteLogsUserBuffer(t *testing.T) {
	p, th := setupThread(t)

	const va = 0x08000000
	const msg = "hello"
	if _, err := p.Space.Mmap(va, pmm.PageSize, mmu.Write, false, nil, 0); err != 0 {
		t.Fatalf("Mmap: %v", err)
	}
	if err := p.Space.Fault(va, vmspace.FaultKind{Write: true, User: true}, 0xc0000000); err != 0 {
		t.Fatalf("Fault: %v", err)
	}
	ub := p.Space.NewUserbuf(va, len(msg))
	if _, err := ub.Uiowrite([]byte(msg)); err != 0 {
		t.Fatalf("Uiowrite: %v", err)
	}

	sink := &capSink{}
	diag.SetSink(sink)

	th.Regs.Rax = SysWrite
	th.Regs.Rbx = va
	th.Regs.Rcx = uintptr(len(msg))
	syscallHandler(SyscallVector, th.Regs)

	if got := string(sink.buf); got != msg {
		t.Fatalf("logged %q, want %q", got, msg)
	}
	if th.Regs.Rax != uintptr(len(msg)) {
		t.Fatalf("write returned %d, want %d", th.Regs.Rax, len(msg))
	}
}
