package sched

// Mutex is a sleeping lock: a contended Lock blocks the calling thread on
// a WaitQueue rather than spinning, so it is safe to hold across blocking
// operations that a Spinlock must never be held across (page-in, a nested
// acquire of another Mutex).
type Mutex struct {
	lock WaitQueue
	held bool
	// owner is kept for diagnostics only (deadlock reporting); it is
	// never consulted for correctness.
	owner *Thread
}

// Lock blocks until the mutex is free, then takes it.
func (m *Mutex) Lock() {
	var flags uintptr
	m.lock.lock.LockIRQ(&flags)
	for m.held {
		t := Current()
		if t == nil {
			panic("sched: Mutex.Lock with no current thread")
		}
		t.State = Blocked
		m.lock.enqueue(t)
		m.lock.lock.UnlockIRQ(flags)
		Switch()
		m.lock.lock.LockIRQ(&flags)
	}
	m.held = true
	m.owner = Current()
	m.lock.lock.UnlockIRQ(flags)
}

// Unlock releases the mutex and wakes one waiter, if any.
func (m *Mutex) Unlock() {
	var flags uintptr
	m.lock.lock.LockIRQ(&flags)
	m.held = false
	m.owner = nil
	waiter := m.lock.dequeue()
	m.lock.lock.UnlockIRQ(flags)
	if waiter != nil {
		MakeRunnable(waiter)
	}
}

// TryLock attempts to take the mutex without blocking. Returns whether it
// succeeded.
func (m *Mutex) TryLock() bool {
	var flags uintptr
	m.lock.lock.LockIRQ(&flags)
	defer m.lock.lock.UnlockIRQ(flags)
	if m.held {
		return false
	}
	m.held = true
	m.owner = Current()
	return true
}
