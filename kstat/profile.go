package kstat

import (
	"io"

	"github.com/google/pprof/profile"

	"coreos/accnt"
)

// ProcSample is one process's accounting snapshot, the unit Export turns
// into a pprof sample keyed by pid.
type ProcSample struct {
	Pid  int
	Name string
	Acct *accnt.Accnt_t
}

// Export assembles a pprof profile.Profile with two sample types — user
// and system nanoseconds — one sample per process, the generalization of
// justanotherdot-biscuit's intelprof_t/pmev_t raw PMC event dump into a
// format `go tool pprof` can render directly. Nothing in this core serves
// the profile through a device; the caller decides where it goes.
func Export(procs []ProcSample) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "user", Unit: "nanoseconds"},
			{Type: "system", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:     1,
	}

	for i, ps := range procs {
		fn := &profile.Function{
			ID:   uint64(i + 1),
			Name: ps.Name,
		}
		loc := &profile.Location{
			ID:   uint64(i + 1),
			Line: []profile.Line{{Function: fn, Line: int64(ps.Pid)}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)

		ps.Acct.Lock()
		u, s := ps.Acct.Userns, ps.Acct.Sysns
		ps.Acct.Unlock()

		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{u, s},
			Label:    map[string][]string{"pid": {itoa(ps.Pid)}},
		})
	}
	return p
}

// WriteTo serializes p in the gzip-compressed pprof wire format expected
// by `go tool pprof`.
func WriteTo(p *profile.Profile, w io.Writer) error {
	return p.Write(w)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte(n%10) + '0'
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
