// Package boot consumes the Multiboot information block handed to the
// kernel at entry and wires every other package together into a running
// system, the same role gopheros' kernel/kmain.go plays relative to its
// hal/multiboot package — trimmed to exactly the two Multiboot fields this
// core reads.
package boot

import (
	"coreos/diag"
	"coreos/elfload"
	"coreos/errs"
	"coreos/initrd"
	"coreos/irq"
	"coreos/kmap"
	"coreos/mmu"
	"coreos/pmm"
	"coreos/proc"
	"coreos/sched"
	"coreos/vmspace"
)

// Info carries the two fields of the Multiboot information block this
// core actually consumes; everything else Multiboot can report (VBE
// framebuffer, APM table, boot command line, …) falls outside its scope.
type Info struct {
	// UpperMemKiB is the size, in KiB, of memory above the 1MiB mark, as
	// reported by the Multiboot basic-memory-info tag.
	UpperMemKiB uint32
	// Modules lists the boot modules the loader placed in memory (the
	// initrd image, almost always exactly one entry).
	Modules []Module
}

// Module is one Multiboot module: a contiguous physical range plus its
// command-line string (conventionally the module's filename).
type Module struct {
	Start, End uintptr
	CmdLine    string
}

// Config is the small set of boot-time tunables this core derives from
// Info plus built-in constants, populated once by Init and read by every
// other package the way gopheros' kernel/hal.go populates a package-level
// struct once at boot.
type Config struct {
	// FrameCount is the number of physical page frames pmm.Init manages,
	// derived from Info.UpperMemKiB.
	FrameCount uint32
	// TimerHZ is the periodic timer's configured frequency.
	TimerHZ uint32
	// DirectMapBase is the kernel virtual address physical memory is
	// mapped at 1:1.
	DirectMapBase uintptr
	// KernelBase is the virtual address at or above which kernel
	// mappings live; everything below it is user space.
	KernelBase uintptr
	// KmapBase/KmapPages describe the transient kernel-mapping window
	// kmap.Init installs.
	KmapBase  uintptr
	KmapPages uint32
}

// DefaultTimerHZ is the periodic timer frequency Init records in
// Config.TimerHZ; Init takes no parameter that overrides it.
const DefaultTimerHZ = 100

var activeConfig Config

// ActiveConfig returns the configuration Init most recently installed.
func ActiveConfig() Config {
	return activeConfig
}

// Hardware collects the platform collaborators Entry wires into sched,
// mmu, irq and diag. A real boot stub supplies the actual port-I/O and
// assembly-backed implementations; tests supply fakes, the same
// dependency-injection idiom sched.SetIRQHooks already establishes.
type Hardware struct {
	DisableIRQs   func() uintptr
	EnableIRQs    func(uintptr)
	TLBInvalidate func(addr uintptr)
	TLBFlush      func()
	AckIRQ        func(vector int)
	Sink          diag.Sink
}

// Init derives a Config from info and installs it as ActiveConfig. It
// performs no side effects on other packages; Entry does that.
func Init(info Info, hw Hardware, directMapBase, kernelBase, kmapBase uintptr, kmapPages uint32) Config {
	cfg := Config{
		FrameCount:    (info.UpperMemKiB * 1024) / pmm.PageSize,
		TimerHZ:       DefaultTimerHZ,
		DirectMapBase: directMapBase,
		KernelBase:    kernelBase,
		KmapBase:      kmapBase,
		KmapPages:     kmapPages,
	}
	activeConfig = cfg
	return cfg
}

// Entry wires every package together in this order: the diagnostic sink,
// the scheduler's IRQ hooks, the MMU direct map and TLB hooks, the IRQ ack
// hook, the physical allocator, a fresh address space with the transient
// kernel-mapping window inside it, and finally process 1 loaded from the
// supplied initrd image, followed by the permanent idle thread. It
// never returns; the final sched.Switch hands control to whichever of the
// two threads the scheduler picks first.
func Entry(info Info, hw Hardware, img *initrd.Image, initName string, directMapBase, kernelBase, kmapBase uintptr, kmapPages uint32) {
	cfg := Init(info, hw, directMapBase, kernelBase, kmapBase, kmapPages)

	diag.SetSink(hw.Sink)
	sched.SetIRQHooks(hw.DisableIRQs, hw.EnableIRQs)
	mmu.SetDirectMapBase(cfg.DirectMapBase)
	mmu.SetTLBHooks(hw.TLBInvalidate, hw.TLBFlush)
	irq.SetAckHook(hw.AckIRQ)

	pmm.Init(0, cfg.FrameCount)

	space, serr := vmspace.NewSpace()
	if serr != 0 {
		diag.Panic(&errs.Fault{Module: "boot", Message: "vmspace.NewSpace failed: " + serr.String()})
		return
	}
	kmap.Init(kmap.Window{Base: cfg.KmapBase, Pages: cfg.KmapPages, Space: space.MMU})

	proc.SetKernelBase(cfg.KernelBase)

	f := img.Open(initName)
	if f == nil {
		diag.Panic(&errs.Fault{Module: "boot", Message: "init binary missing from ramdisk: " + initName})
		return
	}

	entry, lerr := elfload.Load(space, f, cfg.KernelBase)
	if lerr != 0 {
		diag.Panic(&errs.Fault{Module: "boot", Message: "failed to load init binary: " + lerr.String()})
		return
	}

	proc.NewInit(space, entry)
	proc.NewIdle()

	sched.Switch()
}
