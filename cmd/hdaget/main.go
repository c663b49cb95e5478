// hdaget searches, orders and downloads products from a WEkEO data broker.
package main

import (
	"os"
	"slices"

	"github.com/eodata/hdaget/internal/cli"
)

func main() {
	// Enable per-request timing output on stderr
	if slices.Contains(os.Args, "--timing") {
		os.Setenv("HDAGET_TIMING", "1")
		os.Args = slices.DeleteFunc(os.Args, func(a string) bool { return a == "--timing" })
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
