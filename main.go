// The main package for the ingest executable.
package main

import (
	"os"

	"github.com/StanHuanng/anthropo-reader/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
