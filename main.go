package main

import (
	"os"

	"github.com/pmallet07/rideflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
