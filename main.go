// The main package for the vacancy-crawler executable.
package main

import (
	"github.com/JakeFAU/vacancy-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
