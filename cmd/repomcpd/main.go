// Package main provides the entry point for the repomcpd CLI.
package main

import (
	"fmt"
	"os"

	"github.com/repomcp/repomcpd/cmd/repomcpd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
