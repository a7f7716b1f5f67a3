//go:build !headless

// display_ebiten.go - windowed DisplaySink backed by ebiten: a flat
// z-ordered layer stack drawn each frame.
//
// License: GPLv3 or later

package main

import (
	"fmt"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	screenWidth  = 1280
	screenHeight = 720
)

// ebitenDisplay is a DisplaySink that renders the latest composited frame in
// a real window. Present never blocks on the window's own draw cadence; it
// just swaps a pointer ebitenGame.Draw reads under lock.
type ebitenDisplay struct {
	game *ebitenGame
	done chan struct{}
}

type ebitenGame struct {
	mu     sync.Mutex
	frame  CompositedFrame
	closed bool
}

func newDisplaySink() DisplaySink {
	d := &ebitenDisplay{
		game: &ebitenGame{},
		done: make(chan struct{}),
	}
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Visual Novel VM")
	go func() {
		defer close(d.done)
		if err := ebiten.RunGame(d.game); err != nil {
			fmt.Printf("display: ebiten exited: %v\n", err)
		}
	}()
	return d
}

func (d *ebitenDisplay) Present(frame CompositedFrame) error {
	d.game.mu.Lock()
	defer d.game.mu.Unlock()
	if d.game.closed {
		return faultf(BankFault, "present", "display already closed")
	}
	d.game.frame = frame
	return nil
}

func (d *ebitenDisplay) Close() error {
	d.game.mu.Lock()
	d.game.closed = true
	d.game.mu.Unlock()
	return nil
}

func (g *ebitenGame) Update() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ebiten.Termination
	}
	return nil
}

func (g *ebitenGame) Draw(screen *ebiten.Image) {
	g.mu.Lock()
	layers := append([]CompositedLayer(nil), g.frame.Layers...)
	g.mu.Unlock()

	screen.Fill(image.Black.C)
	for _, layer := range layers {
		if layer.Image == nil {
			continue
		}
		img := ebiten.NewImageFromImage(layer.Image)
		opts := &ebiten.DrawImageOptions{}
		screen.DrawImage(img, opts)
	}
}

func (g *ebitenGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}
