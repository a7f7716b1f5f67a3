// collaborators.go - narrow interfaces the core depends on, plus the
// default stdlib-backed adapters. Interactive adapters (a real window, a
// real audio device) live in display_ebiten.go/audio_say_oto.go behind the
// !headless build tag; display_headless.go/audio_say_headless.go provide
// the always-available stand-ins used by tests and CI.
//
// License: GPLv3 or later

package main

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageLoader resolves a manifest-relative path to a decoded bitmap.
type ImageLoader interface {
	Load(path string) (image.Image, error)
}

// Clock is the time source `wait` sleeps against and fadeAlpha ticks
// against. After has the same contract as time.After rather than a blocking
// Sleep so a select alongside a stop channel can still cut the wait short.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// CompositedFrame is the z-ordered stack of visible sprite surfaces the
// compositor hands to a DisplaySink. Rendering fidelity and actual pixel
// blending are a host concern; the core only guarantees layer order and
// per-surface alpha.
type CompositedFrame struct {
	Layers []CompositedLayer
}

// CompositedLayer pairs a bank's current alpha-modulated bitmap with its
// z-order.
type CompositedLayer struct {
	Bank  int
	Layer int32
	Image image.Image
}

// DisplaySink is the presentation collaborator. The core never assumes
// anything about how (or whether) a sink renders; it only calls Present
// when a show, layer or unloadspr instruction, or a fade step, changes the
// composited stack.
type DisplaySink interface {
	Present(frame CompositedFrame) error
	Close() error
}

// SayBackend dispatches a `say` instruction to a host presentation routine
// and reports completion on the returned channel; the calling thread blocks
// until the channel closes.
type SayBackend interface {
	Say(ctx context.Context, bankIndex int, message string) <-chan struct{}
}

// systemClock is the default Clock, backed by the real wall clock.
type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (systemClock) Now() time.Time                        { return time.Now() }

// fileImageLoader resolves paths relative to a base directory and decodes
// them with the stdlib image registry plus the x/image bmp/webp decoders
// registered above.
type fileImageLoader struct {
	baseDir string
}

// NewFileImageLoader returns an ImageLoader that resolves paths relative to
// baseDir and rejects any path that escapes it.
func NewFileImageLoader(baseDir string) ImageLoader {
	return &fileImageLoader{baseDir: baseDir}
}

func (l *fileImageLoader) Load(path string) (image.Image, error) {
	full, err := sanitizeManifestPath(l.baseDir, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}
