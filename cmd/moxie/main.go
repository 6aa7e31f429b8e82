package main

import "github.com/moxieworks/moxie/internal/cli"

func main() {
	cli.Execute()
}
