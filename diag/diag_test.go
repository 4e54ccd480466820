package diag

import "testing"

type bufSink struct{ buf []byte }

func (b *bufSink) WriteByte(c byte) { b.buf = append(b.buf, c) }

func TestPrintfVerbs(t *testing.T) {
	cases := []struct {
		format string
		args   []any
		want   string
	}{
		{"%s", []any{"hi"}, "hi"},
		{"%d", []any{42}, "42"},
		{"%4d", []any{5}, "   5"},
		{"%x", []any{uint32(255)}, "0xff"},
		{"%o", []any{uint32(8)}, "10"},
		{"%t", []any{true}, "true"},
		{"%d-%d", []any{1, 2}, "1-2"},
		{"%d", nil, "%!(MISSING)"},
	}
	for _, c := range cases {
		b := &bufSink{}
		SetSink(b)
		Printf(c.format, c.args...)
		if got := string(b.buf); got != c.want {
			t.Errorf("Printf(%q, %v) = %q, want %q", c.format, c.args, got, c.want)
		}
	}
}

func TestPrintfNegativeInt(t *testing.T) {
	b := &bufSink{}
	SetSink(b)
	Printf("%d", -7)
	if got := string(b.buf); got != "-7" {
		t.Fatalf("Printf(%%d, -7) = %q, want -7", got)
	}
}

func TestDisassembleInvalidBytesReturnsEmpty(t *testing.T) {
	if got := Disassemble(0, nil); got != "" {
		t.Fatalf("Disassemble(nil) = %q, want empty", got)
	}
}
