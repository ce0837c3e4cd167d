// Package main provides the entry point for the neodb CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/neodb/cmd/neodb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
