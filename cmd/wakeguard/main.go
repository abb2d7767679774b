package main

import "github.com/wakeguard/wakeguard/internal/cli"

func main() {
	cli.Execute()
}
