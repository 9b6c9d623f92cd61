package main

import (
	"os"

	"digital.vasic.nback/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
