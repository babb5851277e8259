package main

import (
	"github.com/kwittgruber/parceltrace/cmd"
)

// main is the entry point for the parceltrace CLI.
// All command-line parsing, configuration and execution lives in cmd.
func main() {
	cmd.Execute()
}
