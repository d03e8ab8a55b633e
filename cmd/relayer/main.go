package main

import "github.com/vietddude/relayer/internal/cli"

func main() {
	cli.Execute()
}
