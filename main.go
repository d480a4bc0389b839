package main

import (
	"os"

	"github.com/princinho/sahoassist/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
