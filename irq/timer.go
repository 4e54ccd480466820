package irq

import (
	"coreos/kstat"
	"coreos/proc"
	"coreos/sched"
)

// TimerVector is the remapped vector the periodic timer fires on.
const TimerVector = 32

var ackFn func(vector int)

// SetAckHook wires the external ack_irq collaborator (end-of-interrupt
// write to the PIC/APIC) that every device-IRQ handler must call before
// returning, the same external-collaborator injection sched.SetIRQHooks
// uses for disable_irqs/enable_irqs.
func SetAckHook(ack func(vector int)) {
	ackFn = ack
}

// init registers the timer handler once, at package initialization, so
// callers never need to remember to wire it.
func init() {
	Register(TimerVector, timerHandler)
}

// timerHandler runs on every periodic tick: it acknowledges the interrupt,
// counts it, and requests a reschedule on the interrupted thread rather
// than switching here directly — context switches never happen from
// inside a handler, only at the checked preemption point ExitIRQ provides
// once the handler stack has unwound.
func timerHandler(vector int, f *proc.RegisterFrame) {
	kstat.Core.Irqs[vector].Inc()
	if ackFn != nil {
		ackFn(vector)
	}
	t := sched.Current()
	if t != nil {
		t.Flags |= sched.FlagReschedule
	}
}

// ExitIRQ is called by the trap-return stub immediately before it restores
// user-mode register state. It services a reschedule request left by
// timerHandler (or any other handler) now that the handler stack itself
// has fully unwound, mirroring gopher-os-gopher-os's practice of never
// switching tasks from inside interrupt context.
func ExitIRQ() {
	t := sched.Current()
	if t == nil {
		return
	}
	if t.PreemptCount == 0 && t.Flags&sched.FlagReschedule != 0 {
		sched.Reschedule()
	}
}
