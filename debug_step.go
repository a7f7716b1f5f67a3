// debug_step.go - interactive single-step debugger
//
// stdin is put into raw mode so individual keypresses (not whole lines)
// drive the program, and a done channel signals when the driven goroutine
// should stop reading.
//
// License: GPLv3 or later

package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// runStepDebugger puts the terminal into raw mode and advances thread one
// instruction per keypress, printing its register file after each step.
// Press 'q' to stop reading input and let the thread run freely to
// completion; any other key steps once.
func runStepDebugger(rt *Runtime, thread *Thread) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug: raw mode unavailable, running freely: %v\n", err)
		<-thread.done
		return
	}
	defer term.Restore(fd, oldState)

	thread.stepCh = make(chan struct{})

	fmt.Fprint(os.Stdout, "\r\nstep debugger: any key to step, q to run freely\r\n")

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			break
		}
		if buf[0] == 'q' {
			break
		}
		select {
		case thread.stepCh <- struct{}{}:
		case <-thread.done:
			printThreadState(thread)
			return
		}
		printThreadState(thread)
	}

	// Stop gating and let the thread run to completion on its own: a closed
	// stepCh never blocks the dispatch loop again.
	close(thread.stepCh)
	<-thread.done
}

func printThreadState(t *Thread) {
	fmt.Fprintf(os.Stdout, "\r\npc=%d cmp=%d regint=%v regstr=%q intstack=%v strstack=%v\r\n", t.pc, t.cmp, t.regInt, t.regStr, t.stackInt, t.stackStr)
}
