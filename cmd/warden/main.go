package main

import (
	"os"

	"github.com/fariz/warden/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
