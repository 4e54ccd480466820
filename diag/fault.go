package diag

import "coreos/errs"

// haltFn stops the CPU in an infinite low-power loop once interrupts are
// disabled and the fault has been rendered. It is architecture-specific
// (a `cli; hlt` loop) and therefore injected through SetHaltHook, the same
// external-collaborator idiom as sched's IRQ hooks; while it is nil, Panic
// and PanicFault spin in a busy loop instead.
var haltFn func()

// SetHaltHook installs the architecture-specific CPU halt primitive.
func SetHaltHook(halt func()) {
	haltFn = halt
}

// disableIRQsFn masks interrupts before a fatal diagnostic is rendered,
// the same hook sched.Spinlock.LockIRQ uses, wired here independently
// since diag must not import sched (sched's fatal paths call into diag,
// not the other way around).
var disableIRQsFn func()

// SetDisableIRQsHook installs the interrupt-masking collaborator used
// before rendering a fatal fault.
func SetDisableIRQsHook(disable func()) {
	disableIRQsFn = disable
}

// Panic renders f and halts the CPU. Per spec.md §7, fatal errors disable
// interrupts, render a diagnostic, and halt — this function never
// returns.
func Panic(f *errs.Fault) {
	if disableIRQsFn != nil {
		disableIRQsFn()
	}
	Printf("PANIC [%s]: %s\n", f.Module, f.Message)
	if haltFn != nil {
		haltFn()
	}
	for {
	}
}

// FaultInfo carries the register-level context of a kernel-mode access
// violation or other hardware exception that Panic's caller wants
// rendered before halting.
type FaultInfo struct {
	EIP   uintptr
	CR2   uintptr // faulting address, for page faults
	Code  []byte  // bytes at EIP, for disassembly
	Error uint32  // hardware error code
}

// PanicFault renders fi alongside f's message and halts.
func PanicFault(f *errs.Fault, fi FaultInfo) {
	if disableIRQsFn != nil {
		disableIRQsFn()
	}
	Printf("PANIC [%s]: %s\n", f.Module, f.Message)
	Printf("  eip=%8x cr2=%8x err=%8x\n", fi.EIP, fi.CR2, fi.Error)
	if instr := Disassemble(fi.EIP, fi.Code); instr != "" {
		Printf("  faulting instruction: %s\n", instr)
	}
	if haltFn != nil {
		haltFn()
	}
	for {
	}
}
