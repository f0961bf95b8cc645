package main

import (
	"os"

	"github.com/storygrab/igaccounts/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
