// Package main is the entry point for the logctl binary.
package main

import (
	"os"

	"github.com/PhilHem/logstore/backend/cli"
)

func main() {
	os.Exit(cli.Execute())
}
