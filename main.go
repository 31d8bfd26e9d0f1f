package main

import (
	"os"

	"github.com/lingoloop/lingoloop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
