package main

import (
	"os"

	"github.com/conneroisu/courseview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
