// Command omniwire reconciles a cross-chain messaging deployment with its
// declared configuration.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/omniwire/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "omniwire:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
