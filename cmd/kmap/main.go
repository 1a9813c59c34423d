// cmd/kmap/main.go
//
// This is the entry point for the kmap CLI.
// Running `kmap` in a project directory opens the living knowledge map.
//
// Flow:
// 1. Initialize the .kmap folder and load its config
// 2. Start the phase bridge so other tools can drive the map
// 3. Launch the TUI, or a headless demo run when stdout is not a terminal

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
