// hooks.go - named rendezvous points for cross-thread synchronization
//
// License: GPLv3 or later

package main

import "sync"

// hookSync implements waithook/fire. A thread parking on waithook(name)
// blocks until some thread calls fire(name); fire is non-latched, so firing
// a name with no current waiters is simply a no-op.
//
// Parking has one safety valve: a thread never parks if doing so would leave
// the runtime with no runnable thread at all, since nothing would then be
// left to call fire and the whole program would wedge. liveCount reports how
// many threads are still running (parked threads included); a thread that
// would be the last unparked one passes straight through instead of
// blocking.
type hookSync struct {
	mu        sync.Mutex
	waiters   map[string][]chan struct{}
	parked    int
	liveCount func() int
}

func newHookSync(liveCount func() int) *hookSync {
	return &hookSync{
		waiters:   make(map[string][]chan struct{}),
		liveCount: liveCount,
	}
}

// waithook parks the calling goroutine until fire(name) is called, unless
// doing so would leave zero runnable threads, in which case it returns
// immediately. stopCh lets a Runtime.reset/thread.stop unblock a parked
// thread without a matching fire.
func (h *hookSync) waithook(name string, stopCh <-chan struct{}) {
	h.mu.Lock()
	if h.parked+1 >= h.liveCount() {
		h.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	h.waiters[name] = append(h.waiters[name], ch)
	h.parked++
	h.mu.Unlock()

	select {
	case <-ch:
	case <-stopCh:
		h.mu.Lock()
		h.parked--
		h.mu.Unlock()
	}
}

// fire wakes every thread currently parked on name. Firing a name nobody is
// waiting on is a no-op; fire does not remember that it was called.
func (h *hookSync) fire(name string) {
	h.mu.Lock()
	waiting := h.waiters[name]
	delete(h.waiters, name)
	h.parked -= len(waiting)
	h.mu.Unlock()

	for _, ch := range waiting {
		close(ch)
	}
}

// reset discards all pending waiters without waking them; callers are
// expected to have already asked every thread to stop via its own stopCh.
func (h *hookSync) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waiters = make(map[string][]chan struct{})
	h.parked = 0
}
