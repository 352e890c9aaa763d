// Package main provides the entry point for the qadex CLI.
package main

import (
	"os"

	"github.com/studykit/qadex/cmd/qadex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
