// Package accnt accumulates per-process CPU accounting: nanoseconds spent
// running user code versus nanoseconds spent in the kernel on that
// process's behalf. The syscall dispatcher in irq brackets every syscall
// with Now/Finish to charge system time; kstat reads the result back out
// to build per-process timing reports.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"coreos/util"
)

// Accnt_t holds one process's accumulated usage. The embedded mutex lets
// Fetch take a consistent snapshot of both counters while Add merges a
// child's usage into its parent at wait() time, matching the teaching
// kernel's rusage accumulation on reap.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds of user-mode time.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds of kernel-mode time.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Now returns the current time as nanoseconds since an arbitrary epoch,
// suitable only for computing deltas.
func (a *Accnt_t) Now() int64 {
	return time.Now().UnixNano()
}

// Finish adds the time elapsed since sysStart (in nanoseconds, from Now)
// to the system-time counter. Called when a syscall or fault handler that
// began at sysStart is about to return to user mode.
func (a *Accnt_t) Finish(sysStart int64) {
	a.Systadd(a.Now() - sysStart)
}

// Add merges n's counters into the receiver, used when a process reaps an
// exited child and folds its usage into its own for wait()'s rusage
// output.
func (a *Accnt_t) Add(n *Accnt_t) {
	n.Lock()
	u, s := n.Userns, n.Sysns
	n.Unlock()

	a.Lock()
	a.Userns += u
	a.Sysns += s
	a.Unlock()
}

// Fetch returns a consistent snapshot encoded as a struct rusage
// (tv_sec/tv_usec pairs for user then system time), the layout a
// getrusage-style syscall copies straight into user memory.
func (a *Accnt_t) Fetch() []byte {
	a.Lock()
	u, s := a.Userns, a.Sysns
	a.Unlock()
	return toRusage(u, s)
}

func toRusage(userns, sysns int64) []byte {
	const words = 4
	ret := make([]byte, words*8)
	totv := func(nano int64) (int, int) {
		secs := int(nano / 1e9)
		usecs := int((nano % 1e9) / 1000)
		return secs, usecs
	}
	off := 0
	s, us := totv(userns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	s, us = totv(sysns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	return ret
}
