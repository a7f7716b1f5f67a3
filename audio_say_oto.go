//go:build !headless

// audio_say_oto.go - interactive SayBackend: prints the line to the
// terminal, plays a short synthesized blip cue per line through oto, and
// copies the line to the clipboard so a player can paste it elsewhere.
// This is a dialogue cue, not general audio mixing.
//
// License: GPLv3 or later

package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"golang.design/x/clipboard"
)

const (
	sayCueSampleRate = 44100
	sayCueFreqHz     = 880.0
	sayCueDuration   = 80 * time.Millisecond
)

type otoSay struct {
	mu      sync.Mutex
	ctx     *oto.Context
	ready   chan struct{}
	clipErr error
}

func newSayBackend() SayBackend {
	s := &otoSay{ready: make(chan struct{})}

	go func() {
		op := &oto.NewContextOptions{
			SampleRate:   sayCueSampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, readyCh, err := oto.NewContext(op)
		if err != nil {
			fmt.Printf("say: audio device unavailable, cues disabled: %v\n", err)
			close(s.ready)
			return
		}
		<-readyCh
		s.mu.Lock()
		s.ctx = ctx
		s.mu.Unlock()
		close(s.ready)
	}()

	if err := clipboard.Init(); err != nil {
		s.clipErr = err
	}

	return s
}

func (s *otoSay) Say(ctx context.Context, bankIndex int, message string) <-chan struct{} {
	done := make(chan struct{})
	fmt.Printf("[bank %d] %s\n", bankIndex, message)

	if s.clipErr == nil {
		clipboard.Write(clipboard.FmtText, []byte(message))
	}

	go func() {
		defer close(done)
		<-s.ready
		s.mu.Lock()
		player := s.newCuePlayer()
		s.mu.Unlock()
		if player == nil {
			return
		}
		player.Play()
		for player.IsPlaying() {
			select {
			case <-ctx.Done():
				player.Pause()
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}()
	return done
}

// newCuePlayer synthesizes a short sine-wave blip as a 16-bit PCM buffer and
// wraps it in an oto player. Returns nil if the audio device never came up.
func (s *otoSay) newCuePlayer() *oto.Player {
	if s.ctx == nil {
		return nil
	}
	samples := int(sayCueDuration.Seconds() * sayCueSampleRate)
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		t := float64(i) / sayCueSampleRate
		envelope := 1.0 - float64(i)/float64(samples)
		v := int16(math.Sin(2*math.Pi*sayCueFreqHz*t) * 8000 * envelope)
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	return s.ctx.NewPlayer(&byteReaderCloser{data: buf})
}

// byteReaderCloser adapts a fixed byte buffer to io.Reader for oto.NewPlayer.
type byteReaderCloser struct {
	data []byte
	pos  int
}

func (r *byteReaderCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
