package main

import "github.com/reqgate/reqgate/internal/cli"

func main() {
	cli.Execute()
}
