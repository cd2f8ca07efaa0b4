package main

import (
	"os"

	"nsresolve/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
