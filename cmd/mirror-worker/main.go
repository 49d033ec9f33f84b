package main

import (
	"os"

	"github.com/medtrackhq/medtrack-server/mirrorworker"
)

func main() {
	if err := mirrorworker.Run(); err != nil {
		os.Exit(1)
	}
}
