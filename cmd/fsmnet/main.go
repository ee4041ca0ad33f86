// Command fsmnet compiles and runs networks of guarded state machines.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fsmnet/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fsmnet:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
