package main

import (
	"os"

	"github.com/simas-gestao/simas/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
