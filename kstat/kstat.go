// Package kstat holds the kernel's lightweight statistics counters and
// the pprof profile exporter built on top of them, generalizing the
// teaching kernel's stats/stats.go (Counter_t, Cycles_t, the Stats/Timing
// compile-time gates) and justanotherdot-biscuit's PMC-sampling section
// (pmev_t, intelprof_t) from "dump raw counts to the console" into
// "export a pprof-consumable profile" via the ecosystem profile format.
package kstat

import (
	"sync/atomic"
)

// Enabled gates whether counters actually increment. The teaching
// kernel's Stats/Timing consts serve the same purpose — a compile-time
// toggle so instrumentation costs nothing in a non-instrumented build —
// expressed here as a runtime variable since this module cannot rebuild
// itself per boot configuration.
var Enabled = false

// Counter_t is a monotonically increasing statistic.
type Counter_t int64

// Inc increments the counter by one when Enabled.
func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

// Add increments the counter by n when Enabled.
func (c *Counter_t) Add(n int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), n)
	}
}

// Get returns the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// Cycles_t accumulates elapsed cycles (or nanoseconds, on a platform with
// no cycle counter) attributed to some activity.
type Cycles_t int64

// Add adds the elapsed amount since start (as returned by a monotonic
// clock) to the counter when Enabled.
func (c *Cycles_t) Add(start, now int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), now-start)
	}
}

// Get returns the counter's current value.
func (c *Cycles_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// Core is the global set of kernel-wide counters. irq increments Irqs (for
// the timer vector) and Syscalls; nothing in this core updates PageFaults,
// ContextSwitches or FramesFree.
var Core struct {
	Irqs        [64]Counter_t
	Syscalls    Counter_t
	PageFaults  Counter_t
	ContextSwitches Counter_t
	FramesFree  Counter_t
}
