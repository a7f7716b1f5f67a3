//go:build headless

// audio_say_headless.go - a SayBackend that completes instantly, used by
// tests, CI, and builds with the headless tag where there is no audio device
// and no terminal to print dialogue to.
//
// License: GPLv3 or later

package main

import "context"

type headlessSay struct{}

func newSayBackend() SayBackend { return headlessSay{} }

func (headlessSay) Say(ctx context.Context, bankIndex int, message string) <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
