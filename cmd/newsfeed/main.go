package main

import "github.com/vietddude/newsfeed/internal/cli"

func main() {
	cli.Execute()
}
