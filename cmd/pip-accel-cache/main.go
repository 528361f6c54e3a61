package main

import (
	"fmt"
	"os"

	"github.com/fwiesel/pip-accel/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pip-accel-cache: %v\n", err)
		os.Exit(1)
	}
}
