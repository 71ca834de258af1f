package main

import (
	"os"

	"github.com/lupppig/notifyhttp/cmd/notifyhttp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
