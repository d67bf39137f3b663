package main

import "github.com/Sternrassler/drata-client/internal/cli"

func main() {
	cli.Execute()
}
