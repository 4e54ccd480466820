// Package diag provides the kernel's early, allocation-free diagnostic
// output and its fatal-fault rendering/halt path, generalizing
// gopher-os-gopher-os's kernel/kfmt/early allocation-free formatter (whose
// doc comment explains the same constraint: the Go itables have not been
// initialized yet when the first diagnostics are emitted, so %p/reflect
// are off-limits) from a fixed VGA-text sink to an injected one.
package diag

// Sink is the byte-at-a-time output collaborator Printf writes through.
// Boot installs the real one (serial port, VGA text buffer, whatever the
// platform HAL exposes); it is external to this core per spec.md §1.
type Sink interface {
	WriteByte(b byte)
}

var sink Sink

// SetSink installs the output collaborator used by Printf and the fault
// renderer.
func SetSink(s Sink) {
	sink = s
}

func writeByte(b byte) {
	if sink != nil {
		sink.WriteByte(b)
	}
}

func writeString(s string) {
	for i := 0; i < len(s); i++ {
		writeByte(s[i])
	}
}

func writeBytes(b []byte) {
	for _, c := range b {
		writeByte(c)
	}
}

// Printf is a minimal formatted printer usable before the allocator and
// scheduler are up: it performs no heap allocation and supports only the
// verb subset %s, %d, %o, %x, %t, matching early.Printf's documented
// rationale for not supporting %p (which would force the compiler to
// import reflect to box pointer arguments).
//
// Width is an optional decimal number immediately preceding the verb;
// strings and base-10 integers are space-padded, base-8/16 integers are
// zero-padded.
func Printf(format string, args ...any) {
	argIdx := 0
	i := 0
	for i < len(format) {
		if format[i] != '%' {
			writeByte(format[i])
			i++
			continue
		}
		i++
		if i >= len(format) {
			writeByte('%')
			break
		}
		if format[i] == '%' {
			writeByte('%')
			i++
			continue
		}

		width := 0
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			width = width*10 + int(format[i]-'0')
			i++
		}
		if i >= len(format) {
			writeString("%!(NOVERB)")
			break
		}

		verb := format[i]
		i++
		if argIdx >= len(args) {
			writeString("%!(MISSING)")
			continue
		}
		arg := args[argIdx]
		argIdx++

		switch verb {
		case 's':
			fmtString(arg, width)
		case 'd':
			fmtInt(arg, 10, width)
		case 'o':
			fmtInt(arg, 8, width)
		case 'x':
			fmtInt(arg, 16, width)
		case 't':
			fmtBool(arg)
		default:
			writeString("%!(NOVERB)")
		}
	}
	for ; argIdx < len(args); argIdx++ {
		writeString("%!(EXTRA)")
	}
}

func fmtBool(v any) {
	b, ok := v.(bool)
	if !ok {
		writeString("%!(WRONGTYPE)")
		return
	}
	if b {
		writeString("true")
	} else {
		writeString("false")
	}
}

func fmtString(v any, width int) {
	var s []byte
	switch x := v.(type) {
	case string:
		s = []byte(x)
	case []byte:
		s = x
	default:
		writeString("%!(WRONGTYPE)")
		return
	}
	for i := len(s); i < width; i++ {
		writeByte(' ')
	}
	writeBytes(s)
}

func toUint64(v any) (uval uint64, neg bool, ok bool) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), false, true
	case uint16:
		return uint64(x), false, true
	case uint32:
		return uint64(x), false, true
	case uint64:
		return x, false, true
	case uint:
		return uint64(x), false, true
	case uintptr:
		return uint64(x), false, true
	case int8:
		return absU(int64(x)), x < 0, true
	case int16:
		return absU(int64(x)), x < 0, true
	case int32:
		return absU(int64(x)), x < 0, true
	case int64:
		return absU(x), x < 0, true
	case int:
		return absU(int64(x)), x < 0, true
	default:
		return 0, false, false
	}
}

func absU(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func fmtInt(v any, base, width int) {
	uval, neg, ok := toUint64(v)
	if !ok {
		writeString("%!(WRONGTYPE)")
		return
	}

	var buf [24]byte
	pos := len(buf)
	for {
		d := uval % uint64(base)
		pos--
		if d < 10 {
			buf[pos] = byte(d) + '0'
		} else {
			buf[pos] = byte(d-10) + 'a'
		}
		uval /= uint64(base)
		if uval == 0 {
			break
		}
	}
	digits := len(buf) - pos

	padCh := byte(' ')
	if base != 10 {
		padCh = '0'
	}
	for digits < width {
		pos--
		buf[pos] = padCh
		digits++
	}
	if base == 16 {
		pos--
		buf[pos] = 'x'
		pos--
		buf[pos] = '0'
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	writeBytes(buf[pos:])
}
