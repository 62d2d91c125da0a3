package main

import (
	"fmt"
	"os"

	"github.com/turtacn/puppetizer/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
			os.Exit(1)
		}
	}()
	cli.Execute()
}
