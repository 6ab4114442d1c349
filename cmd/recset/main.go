// Command recset builds versioned recommendation training datasets.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/recset/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "recset: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
