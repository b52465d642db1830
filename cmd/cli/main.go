// Package main is the entry point for the dbx-copilot CLI binary.
package main

import (
	"os"

	"github.com/james-tn/dbx-mcp-copilot/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
