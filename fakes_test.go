// License: GPLv3 or later

package main

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"
)

type fakeImageLoader struct {
	mu    sync.Mutex
	loads int
	delay time.Duration
}

func (f *fakeImageLoader) Load(path string) (image.Image, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	return img, nil
}

func (f *fakeImageLoader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type fakeDisplay struct {
	mu    sync.Mutex
	count int
	last  CompositedFrame
}

func (f *fakeDisplay) Present(frame CompositedFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.last = frame
	return nil
}

func (f *fakeDisplay) Close() error { return nil }

func (f *fakeDisplay) presented() (int, CompositedFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.last
}

type fakeSay struct {
	mu   sync.Mutex
	said []string
}

func (f *fakeSay) Say(ctx context.Context, bankIndex int, message string) <-chan struct{} {
	f.mu.Lock()
	f.said = append(f.said, message)
	f.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

// fakeClock fires instantly so wait/fade don't slow tests down.
type fakeClock struct{}

func (fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}
func (fakeClock) Now() time.Time { return time.Time{} }
