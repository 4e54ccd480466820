// Disassembly of the faulting instruction for the fatal-error diagnostic
// path, generalizing the teaching kernel's callerdump/hexdump debug
// helpers (caller/caller.go) — which could only print a Go call stack —
// into an actual machine-instruction disassembly, since this core has no
// Go call stack to print once it has trapped out of user-mode machine
// code.
package diag

import "golang.org/x/arch/x86/x86asm"

// Disassemble decodes the 32-bit x86 instruction at code (the bytes
// starting at eip) and renders it in Intel syntax. Returns "" if code
// does not hold a valid instruction (truncated read, corrupted stream).
func Disassemble(eip uintptr, code []byte) string {
	if len(code) == 0 {
		return ""
	}
	inst, err := x86asm.Decode(code, 32)
	if err != nil {
		return ""
	}
	return x86asm.IntelSyntax(inst, uint64(eip), nil)
}
