package main

import (
	"os"

	"github.com/medtrackhq/medtrack-server/medtrackservice"
)

func main() {
	if err := medtrackservice.Run(); err != nil {
		os.Exit(1)
	}
}
