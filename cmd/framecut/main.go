// Package main provides the framecut command line.
package main

import "github.com/maauso/framecut/internal/cli"

func main() {
	cli.Main()
}
