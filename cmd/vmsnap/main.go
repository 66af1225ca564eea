package main

import (
	"fmt"
	"os"

	_ "github.com/jimmicro/version"

	"github.com/jimyag/vmsnap/internal/vmsnap/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
