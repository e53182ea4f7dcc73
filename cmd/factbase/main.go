// Command factbase runs judges over a SQLite fact store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/factbase/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
