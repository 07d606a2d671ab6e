package main

import (
	"fmt"
	"os"

	"github.com/xelth-com/pdbsync/internal/cli"
	"github.com/xelth-com/pdbsync/internal/logging"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	_ = logging.Close()
	os.Exit(cli.GetExitCode(err))
}
