package main

import (
	"os"

	"github.com/fabrica-io/fabrica/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
