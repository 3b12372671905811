// The main package for the frontier executable.
package main

import (
	"github.com/JakeFAU/url-frontier/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
