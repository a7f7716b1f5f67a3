// License: GPLv3 or later

package main

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestHookSyncFireWakesWaiter(t *testing.T) {
	var live int32 = 2
	h := newHookSync(func() int { return int(atomic.LoadInt32(&live)) })

	woke := make(chan struct{})
	go func() {
		h.waithook("ready", make(chan struct{}))
		close(woke)
	}()

	time.Sleep(10 * time.Millisecond) // let the waiter park
	h.fire("ready")

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke after fire")
	}
}

func TestHookSyncFireWithNoWaitersIsNoOp(t *testing.T) {
	h := newHookSync(func() int { return 1 })
	h.fire("nobody-waiting") // must not panic or block
}

func TestHookSyncLastRunnableThreadDoesNotPark(t *testing.T) {
	h := newHookSync(func() int { return 1 }) // exactly one live thread: the caller
	done := make(chan struct{})
	go func() {
		h.waithook("anything", make(chan struct{}))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sole runnable thread parked instead of passing through")
	}
}

func TestHookSyncStopChUnparksWaiter(t *testing.T) {
	var live int32 = 2
	h := newHookSync(func() int { return int(atomic.LoadInt32(&live)) })
	stopCh := make(chan struct{})

	done := make(chan struct{})
	go func() {
		h.waithook("never-fired", stopCh)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	close(stopCh)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never unparked after stopCh closed")
	}
}
