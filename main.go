// main.go - command-line entry point for the visual novel VM player
//
// License: GPLv3 or later

package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: vnvm PROGRAM.bin [-assets DIR] [-step]\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	programPath := ""
	assetsDir := ""
	step := false

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-assets":
			i++
			if i >= len(args) {
				usage()
				os.Exit(1)
			}
			assetsDir = args[i]
		case "-step":
			step = true
		case "-h", "-help", "--help":
			usage()
			os.Exit(0)
		default:
			if programPath != "" {
				usage()
				os.Exit(1)
			}
			programPath = args[i]
		}
	}
	if programPath == "" {
		usage()
		os.Exit(1)
	}
	if assetsDir == "" {
		assetsDir = filepath.Dir(programPath)
	}

	program, err := os.ReadFile(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vnvm: %v\n", err)
		os.Exit(1)
	}

	loader := NewFileImageLoader(assetsDir)
	display := newDisplaySink()
	defer display.Close()
	say := newSayBackend()

	rt := NewRuntime(Program(program), loader, assetsDir, display, say, systemClock{})

	thread, err := rt.Start(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vnvm: %v\n", err)
		os.Exit(1)
	}

	if step {
		runStepDebugger(rt, thread)
		return
	}

	<-thread.done
}
