package main

import (
	"os"

	"github.com/medtrackhq/medtrack-server/reminderworker"
)

func main() {
	if err := reminderworker.Run(); err != nil {
		os.Exit(1)
	}
}
