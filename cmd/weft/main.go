package main

import (
	"fmt"
	"os"

	"github.com/weftlabs/weft/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "weft:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
