package kstat

import (
	"bytes"
	"testing"

	"coreos/accnt"
)

func TestCountersNoopWhenDisabled(t *testing.T) {
	Enabled = false
	var c Counter_t
	c.Inc()
	c.Add(5)
	if got := c.Get(); got != 0 {
		t.Fatalf("Get() = %d, want 0 when disabled", got)
	}
}

func TestCountersAccumulateWhenEnabled(t *testing.T) {
	Enabled = true
	defer func() { Enabled = false }()
	var c Counter_t
	c.Inc()
	c.Add(41)
	if got := c.Get(); got != 42 {
		t.Fatalf("Get() = %d, want 42", got)
	}
}

func TestCyclesAddsElapsed(t *testing.T) {
	Enabled = true
	defer func() { Enabled = false }()
	var c Cycles_t
	c.Add(100, 150)
	c.Add(200, 260)
	if got := c.Get(); got != 110 {
		t.Fatalf("Get() = %d, want 110", got)
	}
}

func TestExportProducesOneSamplePerProcess(t *testing.T) {
	a1 := &accnt.Accnt_t{Userns: 10, Sysns: 20}
	a2 := &accnt.Accnt_t{Userns: 30, Sysns: 40}
	p := Export([]ProcSample{
		{Pid: 1, Name: "init", Acct: a1},
		{Pid: 2, Name: "sh", Acct: a2},
	})
	if len(p.Sample) != 2 {
		t.Fatalf("len(Sample) = %d, want 2", len(p.Sample))
	}
	if p.Sample[0].Value[0] != 10 || p.Sample[0].Value[1] != 20 {
		t.Fatalf("sample 0 = %v, want [10 20]", p.Sample[0].Value)
	}
	if p.Sample[1].Value[0] != 30 || p.Sample[1].Value[1] != 40 {
		t.Fatalf("sample 1 = %v, want [30 40]", p.Sample[1].Value)
	}
	if len(p.SampleType) != 2 {
		t.Fatalf("len(SampleType) = %d, want 2", len(p.SampleType))
	}
}

func TestWriteToProducesNonEmptyOutput(t *testing.T) {
	a := &accnt.Accnt_t{Userns: 1, Sysns: 2}
	p := Export([]ProcSample{{Pid: 1, Name: "init", Acct: a}})
	var buf bytes.Buffer
	if err := WriteTo(p, &buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("WriteTo produced empty output")
	}
}
