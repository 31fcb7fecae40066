// Package main is the entry point for the washbay CLI.
package main

import "github.com/washbay/washbay-cli/internal/cli"

func main() {
	cli.Execute()
}
