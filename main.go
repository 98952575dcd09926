package main

import (
	"os"

	"github.com/heartmatch/heartmatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
