package main

import (
	"os"

	"github.com/rustyeddy/bts/cmd/bts/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
