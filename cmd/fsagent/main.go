package main

import (
	"fmt"
	"os"

	"github.com/harun/fsagent/internal/cli"
	"github.com/harun/fsagent/pkg/bootstrap"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if kind := bootstrap.KindOf(err); kind != "" {
			fmt.Fprintln(os.Stderr, "Kind:", kind)
		}
		os.Exit(1)
	}
}
