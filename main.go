package main

import (
	"os"

	"canopy/internal/canopy"
)

func main() {
	os.Exit(canopy.Run(os.Args[1:]))
}
