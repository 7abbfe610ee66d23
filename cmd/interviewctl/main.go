package main

import "github.com/lexiqai/interview-engine/internal/cli"

func main() {
	cli.Execute()
}
