package main

import "github.com/mvp-joe/jsdoctest/internal/cli"

func main() {
	cli.Execute()
}
