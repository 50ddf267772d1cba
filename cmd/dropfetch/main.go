package main

import (
	"os"

	"github.com/dropfetch/dropfetch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
