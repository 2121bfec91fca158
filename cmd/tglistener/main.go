package main

import (
	"os"

	"github.com/roboricindustries/raycon-tglistener/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
