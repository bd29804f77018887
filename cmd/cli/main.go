package main

import (
	"os"

	"github.com/vagali-dev/vagali/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
