// License: GPLv3 or later

package main

import (
	"testing"
	"time"
)

func newTestRuntime(prog Program) (*Runtime, *fakeDisplay, *fakeSay) {
	display := &fakeDisplay{}
	say := &fakeSay{}
	rt := NewRuntime(prog, &fakeImageLoader{}, ".", display, say, fakeClock{})
	return rt, display, say
}

func TestDispatchArithmeticAndComparison(t *testing.T) {
	p := &programBuilder{}
	p.op(OpSetIL).reg(0).litInt(5)
	p.op(OpSetIL).reg(1).litInt(3)
	p.op(OpAdd).reg(0).reg(1)
	p.op(OpCmpIL).reg(0).litInt(8)
	p.op(OpJe)
	patchJe := p.fixLater()
	p.op(OpSetIL).reg(2).litInt(999) // sentinel: only hit if comparison is wrong
	patchJe(p.offset())
	p.op(OpReset)

	rt, _, _ := newTestRuntime(p.bytes())
	thread, err := rt.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-thread.done:
	case <-time.After(time.Second):
		t.Fatal("thread never finished")
	}

	if thread.regInt[0] != 8 {
		t.Fatalf("ri0 = %d, want 8", thread.regInt[0])
	}
	if thread.regInt[2] != 0 {
		t.Fatalf("ri2 = %d, sentinel was hit, je took the wrong branch", thread.regInt[2])
	}
}

func TestDispatchForkGivesFreshRegisters(t *testing.T) {
	p := &programBuilder{}
	p.op(OpSetIL).reg(0).litInt(111)
	p.op(OpSetSL).reg(0).litStr("parent")
	p.op(OpFork)
	patchFork := p.fixLater()
	p.op(OpWaitHook).litStr("child_done")
	p.op(OpReset)
	patchFork(p.offset())
	p.op(OpPushI).reg(0) // child: push its own ri0, expected 0 (fresh state)
	p.op(OpCmpIL).reg(0).litInt(0)
	p.op(OpJe)
	patchFresh := p.fixLater()
	p.op(OpSetSL).reg(0).litStr("inherited") // only hit if the child saw the parent's ri0
	patchFresh(p.offset())
	p.op(OpSay).reg(0).reg(0) // reports the child's s0: "" when its registers are fresh
	p.op(OpFire).litStr("child_done")

	rt, _, say := newTestRuntime(p.bytes())
	parent, err := rt.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-parent.done:
	case <-time.After(time.Second):
		t.Fatal("parent never finished")
	}
	if parent.regInt[0] != 111 {
		t.Fatalf("parent ri0 = %d, want 111 (unaffected by child)", parent.regInt[0])
	}
	say.mu.Lock()
	defer say.mu.Unlock()
	if len(say.said) != 1 || say.said[0] != "" {
		t.Fatalf("child said %q, want one empty line (fresh ri0 and s0)", say.said)
	}
}

func TestDispatchCallAndRet(t *testing.T) {
	p := &programBuilder{}
	p.op(OpCall)
	patchCall := p.fixLater()
	p.op(OpSetIL).reg(1).litInt(1) // set after call returns
	p.op(OpReset)
	patchCall(p.offset())
	p.op(OpSetIL).reg(0).litInt(42)
	p.op(OpRet)

	rt, _, _ := newTestRuntime(p.bytes())
	thread, err := rt.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-thread.done:
	case <-time.After(time.Second):
		t.Fatal("thread never finished")
	}
	if thread.regInt[0] != 42 {
		t.Fatalf("ri0 = %d, want 42 (callee never ran)", thread.regInt[0])
	}
	if thread.regInt[1] != 1 {
		t.Fatalf("ri1 = %d, want 1 (never returned from call)", thread.regInt[1])
	}
}

func TestDispatchSayDrainsAttrsAndInvokesBackend(t *testing.T) {
	p := &programBuilder{}
	p.op(OpSetSL).reg(0).litStr("hello")
	p.op(OpAttrS).litStr("voice").reg(0)
	p.op(OpSay).reg(0).reg(0)
	p.op(OpReset)

	rt, _, say := newTestRuntime(p.bytes())
	thread, err := rt.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-thread.done:
	case <-time.After(time.Second):
		t.Fatal("thread never finished")
	}
	say.mu.Lock()
	defer say.mu.Unlock()
	if len(say.said) != 1 || say.said[0] != "hello" {
		t.Fatalf("say backend received %v, want [\"hello\"]", say.said)
	}
	if len(thread.attrs) != 0 {
		t.Fatalf("pending attrs after say = %v, want none", thread.attrs)
	}
}

func TestDispatchUnknownOpcodeStopsThreadWithoutCrashing(t *testing.T) {
	p := &programBuilder{buf: []byte{0xFE}}
	rt, _, _ := newTestRuntime(p.bytes())
	thread, err := rt.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-thread.done:
	case <-time.After(time.Second):
		t.Fatal("thread never finished after an unknown opcode")
	}
}

func TestDispatchOpenBankWritesLowestEmptySlotIntoRegister(t *testing.T) {
	p := &programBuilder{}
	p.op(OpOpenBank).reg(0)
	p.op(OpOpenBank).reg(1)
	p.op(OpReset)

	rt, _, _ := newTestRuntime(p.bytes())
	thread, err := rt.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-thread.done:
	case <-time.After(time.Second):
		t.Fatal("thread never finished")
	}
	if thread.regInt[0] != 0 {
		t.Fatalf("ri0 = %d, want 0 (first openbank on an empty bank)", thread.regInt[0])
	}
	if thread.regInt[1] != 1 {
		t.Fatalf("ri1 = %d, want 1 (second openbank, slot 0 already taken)", thread.regInt[1])
	}
}

func TestDispatchShowSetsAlphaFromOperandDirectly(t *testing.T) {
	p := &programBuilder{}
	p.op(OpOpenBank).reg(0)
	p.op(OpSetIL).reg(1).litInt(64)
	p.op(OpShow).reg(0).reg(1)
	// no trailing reset: it would clear the bank this test inspects

	rt, display, _ := newTestRuntime(p.bytes())
	thread, err := rt.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-thread.done:
	case <-time.After(time.Second):
		t.Fatal("thread never finished")
	}

	surface, err := rt.bank.surface(0)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	if surface.Alpha() != 64 {
		t.Fatalf("alpha = %d, want 64", surface.Alpha())
	}
	display.mu.Lock()
	defer display.mu.Unlock()
	if display.count == 0 {
		t.Fatal("show never called present")
	}
}

func TestDispatchShowWithFadeAttrInterpolatesToTarget(t *testing.T) {
	p := &programBuilder{}
	p.op(OpOpenBank).reg(0)
	p.op(OpSetIL).reg(1).litInt(30) // 30ms fade
	p.op(OpAttrI).litStr("fade").reg(1)
	p.op(OpSetIL).reg(2).litInt(0)
	p.op(OpShow).reg(0).reg(2) // fade toward alpha 0 over 30ms
	p.op(OpWaitMs).reg(1)
	// no trailing reset: it would clear the bank and cancel the fade

	rt, _, _ := newTestRuntime(p.bytes())
	thread, err := rt.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-thread.done:
	case <-time.After(2 * time.Second):
		t.Fatal("thread never finished")
	}

	surface, err := rt.bank.surface(0)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	// Give the fade goroutine's last tick a moment to land after the thread's
	// own wait expires.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && surface.Alpha() != 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if surface.Alpha() != 0 {
		t.Fatalf("alpha = %d after fade, want 0", surface.Alpha())
	}
}

func TestRuntimeAlreadyRunningFaults(t *testing.T) {
	p := &programBuilder{}
	p.op(OpWaitHook).litStr("never")
	rt, _, _ := newTestRuntime(p.bytes())
	if _, err := rt.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := rt.Start(0); err == nil {
		t.Fatal("expected ALREADY_RUNNING fault on a second Start")
	}
	rt.Reset()
}

func TestRuntimeResetClearsBankAndThreads(t *testing.T) {
	p := &programBuilder{}
	p.op(OpOpenBank).reg(0)
	p.op(OpWaitHook).litStr("never")
	rt, _, _ := newTestRuntime(p.bytes())
	if _, err := rt.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond) // let openbank run before reset races it
	rt.Reset()

	if !rt.bank.slotFree(0) {
		t.Fatal("bank slot 0 still occupied after Reset")
	}
	if _, err := rt.Start(0); err != nil {
		t.Fatalf("Start after Reset: %v", err)
	}
	rt.Reset()
}
