package main

import (
	"fmt"
	"os"

	"clm-insight/cmd/clm-insight/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
