// spritebank.go - fixed-size shared table of sprite surfaces
//
// License: GPLv3 or later

package main

import (
	"image"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SpriteBank is the 32-slot table shared by every thread in a Runtime. Slot
// occupancy and contents are guarded by mu; concurrent loadspr calls for the
// same manifest path are deduplicated by group so that two threads racing
// to open the same background don't decode it twice.
type SpriteBank struct {
	mu      sync.Mutex
	slots   [MaxBanks]*SpriteSurface
	loader  ImageLoader
	baseDir string
	group   singleflight.Group
}

func newSpriteBank(loader ImageLoader, baseDir string) *SpriteBank {
	return &SpriteBank{loader: loader, baseDir: baseDir}
}

// firstEmpty returns the lowest free slot index, or -1 if the bank is full.
// It scans from slot 0, as openFirst and reset do; the single-slot
// operations are O(1).
func (b *SpriteBank) firstEmpty() int {
	for i, s := range b.slots {
		if s == nil {
			return i
		}
	}
	return -1
}

// slotFree reports whether bank is unoccupied.
func (b *SpriteBank) slotFree(bank int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[bank] == nil
}

// load resolves manifestPath to a SpriteSurface (deduplicating identical
// in-flight loads across threads) and installs it in bank, overwriting
// whatever was there. Returns the slot's new surface.
func (b *SpriteBank) load(bank int, manifestPath string) (*SpriteSurface, error) {
	if bank < 0 || bank >= MaxBanks {
		return nil, faultf(BankFault, "loadspr", "bank %d out of range", bank)
	}

	v, err, _ := b.group.Do(manifestPath, func() (interface{}, error) {
		return loadSpriteManifest(manifestPath, b.loader)
	})
	if err != nil {
		return nil, err
	}
	// Deduplicated callers share the parsed frame map, but each slot gets its
	// own surface so current frame and alpha stay per-slot.
	shared := v.(*SpriteSurface)
	surface := &SpriteSurface{
		frames:     shared.frames,
		current:    defaultFrameName,
		alpha:      255,
		loadErrors: shared.loadErrors,
	}
	surface.recomputeModulated()

	b.mu.Lock()
	b.slots[bank] = surface
	b.mu.Unlock()
	return surface, nil
}

// open reserves bank with an empty surface, without loading any manifest.
// Opening an already-occupied bank faults.
func (b *SpriteBank) open(bank int) error {
	if bank < 0 || bank >= MaxBanks {
		return faultf(BankFault, "openbank", "bank %d out of range", bank)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.slots[bank] != nil {
		return faultf(BankFault, "openbank", "bank %d already open", bank)
	}
	b.slots[bank] = newEmptySurface()
	return nil
}

// openFirst reserves the lowest free slot with an empty surface and returns
// its index. If the bank is full it reserves nothing and reports ok=false;
// the openbank opcode reads that as "leave the register alone".
func (b *SpriteBank) openFirst() (slot int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.slots {
		if s == nil {
			b.slots[i] = newEmptySurface()
			return i, true
		}
	}
	return 0, false
}

func newEmptySurface() *SpriteSurface {
	return &SpriteSurface{
		frames:  make(map[string]image.Image),
		current: defaultFrameName,
		alpha:   255,
	}
}

// clear empties bank. Clearing an already-empty bank is a no-op.
func (b *SpriteBank) clear(bank int) error {
	if bank < 0 || bank >= MaxBanks {
		return faultf(BankFault, "unloadspr", "bank %d out of range", bank)
	}
	b.mu.Lock()
	b.slots[bank] = nil
	b.mu.Unlock()
	return nil
}

// surface returns bank's current SpriteSurface, or nil if empty.
func (b *SpriteBank) surface(bank int) (*SpriteSurface, error) {
	if bank < 0 || bank >= MaxBanks {
		return nil, faultf(BankFault, "bank", "bank %d out of range", bank)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[bank], nil
}

// reset clears every slot. Called by the reset opcode and by Runtime.reset.
func (b *SpriteBank) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.slots {
		b.slots[i] = nil
	}
}
