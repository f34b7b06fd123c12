// Command reportiq is the command line interface for local report analysis.
package main

import (
	"fmt"
	"os"

	"github.com/medtext/reportiq/internal/interfaces/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
