package main

import "go.bptree/internal/cli"

func main() {
	cli.Execute()
}
