// Package irq implements interrupt and syscall dispatch: a fixed table of
// append-only handler lists per vector (gopher-os-gopher-os's
// HandleException/HandleExceptionWithCode registration, generalized from a
// single slot per exception number to a list, since this core also
// multiplexes device IRQs through the same table), a non-reentrance guard
// per vector, and the syscall dispatch table the timer and trap entry stubs
// fall into once they have recovered a proc.Thread.
package irq

import "coreos/proc"

// NumVectors is the number of interrupt vectors this table multiplexes:
// all 256 x86 vectors, covering the 32 CPU exceptions, the device IRQs
// remapped above them, and the SyscallVector trap gate.
const NumVectors = 256

// Handler is invoked with the vector number and the trapped thread's
// register frame. Returning leaves *f free to have been modified; the
// trap-return stub restores registers from it.
type Handler func(vector int, f *proc.RegisterFrame)

type vectorState struct {
	handlers []Handler
	inFlight bool
}

var table [NumVectors]vectorState

// Register appends handler to vector's list. Handlers run in registration
// order; none may itself be interrupted by the same vector (see inFlight
// in Dispatch), the same non-reentrance rule gopher-os-gopher-os's
// exception table enforces implicitly by running with interrupts masked.
func Register(vector int, handler Handler) {
	table[vector].handlers = append(table[vector].handlers, handler)
}

// Dispatch runs every handler registered for vector against f. A vector
// that traps while its own handlers are still running (a bug, not a
// supported nesting) is dropped rather than re-entered.
func Dispatch(vector int, f *proc.RegisterFrame) {
	v := &table[vector]
	if v.inFlight {
		return
	}
	v.inFlight = true
	for _, h := range v.handlers {
		h(vector, f)
	}
	v.inFlight = false
}
