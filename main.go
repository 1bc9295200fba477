package main

import (
	"os"

	"media-catalog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
