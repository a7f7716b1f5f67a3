// spritesurface.go - named-frame bitmap container with alpha composition
//
// License: GPLv3 or later

package main

import (
	"bufio"
	"fmt"
	"image"
	"image/draw"
	"os"
	"strings"
	"sync"
)

// SpriteSurface is a mapping of frame name to decoded bitmap, a selected
// current frame, and an alpha level in [0,255]. The alpha-modulated bitmap
// is recomputed whenever alpha or the current frame changes. mu guards all
// of it, since a show fade mutates alpha from a background goroutine while
// the display sink may concurrently read Modulated().
type SpriteSurface struct {
	mu         sync.Mutex
	frames     map[string]image.Image
	current    string
	alpha      int
	modulated  image.Image
	loadErrors []string // frames whose decode failed; entry is simply absent
	fadeGen    int       // bumped by SetAlpha and beginFade, in-flight fades check it to know they've been superseded
}

const defaultFrameName = "default"

// loadSpriteManifest parses a `name=path` manifest (one entry per line,
// blank lines ignored) and decodes every referenced image through loader.
// A frame whose image fails to load is logged and simply absent from the
// surface; it does not abort construction.
func loadSpriteManifest(manifestPath string, loader ImageLoader) (*SpriteSurface, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, faultf(BankFault, "loadspr", "open manifest %q: %v", manifestPath, err)
	}
	defer f.Close()

	s := &SpriteSurface{
		frames:  make(map[string]image.Image),
		current: defaultFrameName,
		alpha:   255,
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, path, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)

		img, err := loader.Load(path)
		if err != nil {
			msg := fmt.Sprintf("couldn't load image %s at path %s: %v", name, path, err)
			fmt.Fprintln(os.Stderr, msg)
			s.loadErrors = append(s.loadErrors, msg)
			continue
		}
		s.frames[name] = img
	}
	if err := scanner.Err(); err != nil {
		return nil, faultf(BankFault, "loadspr", "read manifest %q: %v", manifestPath, err)
	}

	if img, ok := s.frames[defaultFrameName]; ok {
		s.modulated = img
	}
	s.recomputeModulated()
	return s, nil
}

// SetCurrent switches the active frame. Selecting an unknown name is a
// fault.
func (s *SpriteSurface) SetCurrent(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frames[name]; !ok {
		return faultf(BankFault, "anim_name", "unknown frame %q", name)
	}
	s.current = name
	s.recomputeModulated()
	return nil
}

// Alpha returns the current alpha level.
func (s *SpriteSurface) Alpha() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alpha
}

// SetAlpha writes a new alpha level immediately, cancelling any fade in
// progress. Values outside [0,255] fault without mutating the surface.
func (s *SpriteSurface) SetAlpha(alpha int) error {
	if alpha < 0 || alpha > 255 {
		return faultf(AlphaRange, "show", "alpha %d outside [0,255]", alpha)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fadeGen++
	s.alpha = alpha
	s.recomputeModulated()
	return nil
}

// beginFade cancels any fade already in flight and returns a generation
// token for a new one; stepFade calls bearing a stale token are no-ops.
func (s *SpriteSurface) beginFade() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fadeGen++
	return s.fadeGen
}

// stepFade sets alpha to the given value if gen is still current, and
// reports whether it did. A false return means a later SetAlpha or fade
// superseded this one and the caller should stop ticking.
func (s *SpriteSurface) stepFade(gen, alpha int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.fadeGen {
		return false
	}
	s.alpha = alpha
	s.recomputeModulated()
	return true
}

// Modulated returns the alpha-modulated bitmap of the current frame, or nil
// if the current frame's image failed to load.
func (s *SpriteSurface) Modulated() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modulated
}

// recomputeModulated assumes mu is already held.
func (s *SpriteSurface) recomputeModulated() {
	src, ok := s.frames[s.current]
	if !ok {
		s.modulated = nil
		return
	}
	if s.alpha == 255 {
		s.modulated = src
		return
	}
	s.modulated = modulateAlpha(src, s.alpha)
}

// modulateAlpha returns a copy of src with every pixel's alpha channel
// scaled by alpha/255, mirroring pygame's BLEND_RGBA_MULT against a mask of
// (255,255,255,alpha) in premultiplied-alpha semantics: colour channels are
// left untouched (multiplied by 255/255), only alpha scales.
func modulateAlpha(src image.Image, alpha int) image.Image {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := dst.PixOffset(x, y)
			a := int(dst.Pix[i+3])
			dst.Pix[i+3] = byte((a * alpha) / 255)
		}
	}
	return dst
}
