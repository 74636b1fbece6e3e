package main

import (
	"fmt"
	"os"

	"github.com/trace2pass/trace2pass/cmd/trace2pass/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
