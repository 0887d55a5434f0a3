package main

import (
	"os"

	"github.com/auditfile-dev/auditfile/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
