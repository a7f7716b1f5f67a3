// runtime.go - owns the program, the shared sprite bank and hook registry,
// and the set of live threads.
//
// License: GPLv3 or later

package main

import (
	"sync"
	"time"
)

// Runtime is one loaded program together with everything its threads share:
// the sprite bank, the hook synchronizer, and the collaborators that carry
// effects out to the host.
type Runtime struct {
	mu      sync.Mutex
	program Program
	bank    *SpriteBank
	hooks   *hookSync
	display DisplaySink
	say     SayBackend
	clock   Clock

	threads map[int]*Thread
	nextID  int
	running bool

	visMu   sync.Mutex
	visible map[int]int32 // bank -> z-order, populated by layer
}

// NewRuntime wires a Runtime around its collaborators. loader and baseDir
// back the sprite bank's image loading; display, say and clock may be the
// headless stand-ins or the interactive adapters.
func NewRuntime(program Program, loader ImageLoader, baseDir string, display DisplaySink, say SayBackend, clock Clock) *Runtime {
	rt := &Runtime{
		program: program,
		display: display,
		say:     say,
		clock:   clock,
		threads: make(map[int]*Thread),
		visible: make(map[int]int32),
	}
	rt.bank = newSpriteBank(loader, baseDir)
	rt.hooks = newHookSync(rt.liveCount)
	return rt
}

// setVisible records bank as shown at z-order z. A later call for the same
// bank replaces its z-order.
func (rt *Runtime) setVisible(bank int, z int32) {
	rt.visMu.Lock()
	rt.visible[bank] = z
	rt.visMu.Unlock()
}

// clearVisible removes bank from the visible set, e.g. after unloadspr.
func (rt *Runtime) clearVisible(bank int) {
	rt.visMu.Lock()
	delete(rt.visible, bank)
	rt.visMu.Unlock()
}

// present recomposites every visible bank's current alpha-modulated bitmap,
// in ascending z-order, and hands the result to the display sink. A bank
// whose surface has no loadable current frame is simply omitted.
func (rt *Runtime) present() error {
	rt.visMu.Lock()
	layers := make([]CompositedLayer, 0, len(rt.visible))
	for bank, z := range rt.visible {
		surface, err := rt.bank.surface(bank)
		if err != nil || surface == nil {
			continue
		}
		img := surface.Modulated()
		if img == nil {
			continue
		}
		layers = append(layers, CompositedLayer{Bank: bank, Layer: z, Image: img})
	}
	rt.visMu.Unlock()

	sortLayersByZ(layers)
	return rt.display.Present(CompositedFrame{Layers: layers})
}

// fadeAlpha steps surface's alpha from its current value to target over dur,
// at roughly 60 Hz, re-presenting after each step. It runs in its own
// goroutine so the show opcode that started it doesn't block the thread for
// the fade's whole duration; a later SetAlpha or fadeAlpha on the same
// surface, or the thread stopping, cuts it short.
func (rt *Runtime) fadeAlpha(surface *SpriteSurface, target int, dur time.Duration, stopCh <-chan struct{}) {
	const tick = time.Second / 60
	start := surface.Alpha()
	steps := int(dur / tick)
	if steps < 1 {
		steps = 1
	}
	gen := surface.beginFade()

	go func() {
		for i := 1; i <= steps; i++ {
			select {
			case <-rt.clock.After(tick):
			case <-stopCh:
				return
			}
			v := start + (target-start)*i/steps
			if !surface.stepFade(gen, v) {
				return
			}
			rt.present()
		}
	}()
}

func sortLayersByZ(layers []CompositedLayer) {
	for i := 1; i < len(layers); i++ {
		for j := i; j > 0 && layers[j].Layer < layers[j-1].Layer; j-- {
			layers[j], layers[j-1] = layers[j-1], layers[j]
		}
	}
}

// liveCount reports how many threads have not yet been asked to stop. Held
// by hookSync to implement waithook's deadlock-avoidance rule.
func (rt *Runtime) liveCount() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	n := 0
	for _, t := range rt.threads {
		if t.isRunning() {
			n++
		}
	}
	return n
}

// Start launches the program's first thread at entry point pc. Calling
// Start while the runtime already has live threads faults ALREADY_RUNNING;
// callers must Reset first.
func (rt *Runtime) Start(pc int) (*Thread, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.running {
		return nil, faultf(AlreadyRunning, "start", "runtime already has a live thread")
	}
	rt.running = true
	t := rt.spawnLocked(pc)
	go rt.runThread(t)
	return t, nil
}

// forkAt spawns a new thread at pc with fresh (zeroed) register and stack
// state — a forked thread never inherits its parent's registers or stacks,
// only the shared bank and hooks. pc is an absolute program offset, not
// relative to the forking thread's own pc.
func (rt *Runtime) forkAt(pc int) *Thread {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.spawnLocked(pc)
}

func (rt *Runtime) spawnLocked(pc int) *Thread {
	id := rt.nextID
	rt.nextID++
	t := newThread(id, pc)
	rt.threads[id] = t
	return t
}

// forget removes a thread from the live set once its dispatch loop exits.
func (rt *Runtime) forget(id int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.threads, id)
}

// Reset stops every live thread, waits for their dispatch loops to exit,
// then clears the sprite bank and hook registry so the runtime is ready for
// a fresh Start.
func (rt *Runtime) Reset() {
	rt.mu.Lock()
	threads := make([]*Thread, 0, len(rt.threads))
	for _, t := range rt.threads {
		threads = append(threads, t)
	}
	rt.mu.Unlock()

	for _, t := range threads {
		t.stop()
	}
	for _, t := range threads {
		<-t.done
	}

	rt.mu.Lock()
	rt.threads = make(map[int]*Thread)
	rt.running = false
	rt.mu.Unlock()

	rt.bank.reset()
	rt.hooks.reset()
}
