package main

import (
	"os"

	"github.com/Praises003/aether/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
