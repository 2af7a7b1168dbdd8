package main

import (
	"fmt"
	"os"

	"github.com/dougsko/audioroute/cmd/routectl/commands"
)

// Version information, set at build time
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
