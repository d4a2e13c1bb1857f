package main

import (
	"os"

	"github.com/conneroisu/brick/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
