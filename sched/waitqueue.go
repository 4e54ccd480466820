package sched

// WaitQueue is a FIFO list of blocked threads, protected by its own lock.
// A thread that calls Wait blocks until some other thread calls Wake or
// WakeAll on the same queue; the two never race because the caller-
// supplied condition check happens while the queue lock is held.
type WaitQueue struct {
	lock Spinlock
	head *Thread
	tail *Thread
}

func (q *WaitQueue) enqueue(t *Thread) {
	t.link = nil
	if q.tail == nil {
		q.head, q.tail = t, t
		return
	}
	q.tail.link = t
	q.tail = t
}

func (q *WaitQueue) dequeue() *Thread {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.link
	if q.head == nil {
		q.tail = nil
	}
	t.link = nil
	return t
}

// Wait blocks the current thread on q until woken. cond is evaluated with
// q's lock held, immediately before blocking and immediately after every
// wakeup, so a caller can safely write:
//
//	q.Wait(func() bool { return len(buf) > 0 })
//
// and be certain it never misses a wakeup that raced the call to Wait and
// never wakes spuriously with cond still false.
func (q *WaitQueue) Wait(cond func() bool) {
	var flags uintptr
	q.lock.LockIRQ(&flags)
	for !cond() {
		t := Current()
		if t == nil {
			panic("sched: Wait with no current thread")
		}
		t.State = Blocked
		q.enqueue(t)
		q.lock.UnlockIRQ(flags)
		Switch()
		q.lock.LockIRQ(&flags)
	}
	q.lock.UnlockIRQ(flags)
}

// Wake removes and makes runnable a single waiting thread, if any. Returns
// whether a thread was woken.
func (q *WaitQueue) Wake() bool {
	var flags uintptr
	q.lock.LockIRQ(&flags)
	t := q.dequeue()
	q.lock.UnlockIRQ(flags)
	if t == nil {
		return false
	}
	MakeRunnable(t)
	return true
}

// WakeAll removes and makes runnable every thread currently waiting on q.
func (q *WaitQueue) WakeAll() {
	var flags uintptr
	q.lock.LockIRQ(&flags)
	var woken []*Thread
	for {
		t := q.dequeue()
		if t == nil {
			break
		}
		woken = append(woken, t)
	}
	q.lock.UnlockIRQ(flags)
	for _, t := range woken {
		MakeRunnable(t)
	}
}
