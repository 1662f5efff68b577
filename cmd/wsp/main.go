package main

import (
	"os"

	"wsp/cmd/wsp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
